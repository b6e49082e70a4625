package relaysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

// SendChunk пересылает ровно cr.Length байт в сессию провайдера. Повторов не делает.
func (s *Relay) SendChunk(ctx context.Context, userID, handle string, cr uploadproto.ContentRange, body []byte) (uploadproto.Outcome, error) {
	start := time.Now()
	out, err := s.sendChunk(ctx, userID, handle, cr, body)
	s.Observer.ObserveChunk(out, err, int64(len(body)), time.Since(start))
	return out, err
}

func (s *Relay) sendChunk(ctx context.Context, userID, handle string, cr uploadproto.ContentRange, body []byte) (uploadproto.Outcome, error) {
	if s.MaxChunkBytes > 0 && cr.Length > s.MaxChunkBytes {
		return nil, fmt.Errorf("%w: %d > %d", models.ErrChunkTooLarge, cr.Length, s.MaxChunkBytes)
	}
	if int64(len(body)) != cr.Length {
		return nil, fmt.Errorf("%w: got %d bytes for %s", models.ErrBadRange, len(body), cr)
	}

	sess, err := s.session(ctx, userID, handle)
	if err != nil {
		return nil, err
	}
	if cr.Total != sess.Size {
		return nil, fmt.Errorf("%w: total %d, session size %d", models.ErrBadRange, cr.Total, sess.Size)
	}

	cred, err := s.credential(ctx, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.Provider.SendRange(ctx, cred.AccessToken, sess.ProviderURL, cr, body)
	if err != nil {
		s.Log.Warn("relay chunk", "session", handle, "range", cr.String(), "err", err)
		return nil, err
	}

	s.afterOutcome(ctx, sess, out)
	return out, nil
}

// afterOutcome логирует ответ провайдера и забывает завершённую сессию.
func (s *Relay) afterOutcome(ctx context.Context, sess models.UploadSession, out uploadproto.Outcome) {
	switch v := out.(type) {
	case uploadproto.Complete:
		s.Log.Info("upload complete", "session", sess.ID, "file_id", v.File.ID, "size", sess.Size)
		if err := s.Store.DeleteSession(ctx, sess.ID); err != nil {
			s.Log.Warn("delete finished session", "session", sess.ID, "err", err)
		}
	case uploadproto.Failed:
		s.Log.Warn("provider rejected range", "session", sess.ID, "status", v.Status, "body", v.Body)
	case uploadproto.Continue:
		s.Log.Debug("provider continue", "session", sess.ID, "received", v.Received)
	}
}
