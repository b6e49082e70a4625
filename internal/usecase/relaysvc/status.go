package relaysvc

import (
	"context"
	"fmt"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

// Status запрашивает у провайдера подтверждённый офсет сессии.
func (s *Relay) Status(ctx context.Context, userID, handle string) (uploadproto.Outcome, error) {
	sess, err := s.session(ctx, userID, handle)
	if err != nil {
		return nil, err
	}

	cred, err := s.credential(ctx, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.Provider.QueryStatus(ctx, cred.AccessToken, sess.ProviderURL, sess.Size)
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", handle, err)
	}

	s.afterOutcome(ctx, sess, out)
	return out, nil
}
