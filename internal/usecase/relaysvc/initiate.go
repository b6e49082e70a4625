package relaysvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/internal/provider"
)

// Initiate открывает сессию провайдера от имени пользователя и возвращает непрозрачный
// идентификатор. URL сессии провайдера остаётся на сервере.
func (s *Relay) Initiate(ctx context.Context, userID string, req InitiateRequest) (string, error) {
	start := time.Now()
	handle, err := s.initiate(ctx, userID, req)
	s.Observer.ObserveInitiate(err, time.Since(start))
	return handle, err
}

func (s *Relay) initiate(ctx context.Context, userID string, req InitiateRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", models.ErrBadRequest)
	}
	if req.Size < 0 {
		return "", fmt.Errorf("%w: size must be >= 0", models.ErrBadRequest)
	}

	cred, err := s.credential(ctx, userID)
	if err != nil {
		return "", err
	}

	sessionURL, err := s.Provider.OpenSession(ctx, cred.AccessToken, provider.OpenRequest{
		Name:     name,
		MimeType: req.MimeType,
		Size:     req.Size,
		ParentID: req.ParentID,
	})
	if err != nil {
		s.Log.Warn("open provider session", "user", userID, "name", name, "err", err)
		return "", fmt.Errorf("initiate %q: %w", name, err)
	}

	sess := models.UploadSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProviderURL: sessionURL,
		Name:        name,
		MimeType:    req.MimeType,
		Size:        req.Size,
		ParentID:    req.ParentID,
		CreatedAt:   s.Now().UTC(),
	}
	if err := s.Store.SaveSession(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	s.Log.Info("upload session opened", "user", userID, "session", sess.ID, "name", name, "size", req.Size)
	return sess.ID, nil
}

// credential достаёт действующий токен пользователя.
func (s *Relay) credential(ctx context.Context, userID string) (models.Credential, error) {
	if strings.TrimSpace(userID) == "" {
		return models.Credential{}, models.ErrAuth
	}

	cred, err := s.Store.Credential(ctx, userID)
	if err != nil {
		return models.Credential{}, err
	}
	if !cred.Valid(s.Now()) {
		return models.Credential{}, fmt.Errorf("%w: token expired", models.ErrAuth)
	}
	return cred, nil
}

// session находит сессию пользователя. Чужие сессии неотличимы от несуществующих.
func (s *Relay) session(ctx context.Context, userID, handle string) (models.UploadSession, error) {
	if _, err := uuid.Parse(handle); err != nil {
		return models.UploadSession{}, models.ErrSessionNotFound
	}

	sess, err := s.Store.GetSession(ctx, handle)
	if err != nil {
		return models.UploadSession{}, err
	}
	if sess.UserID != userID {
		return models.UploadSession{}, models.ErrSessionNotFound
	}
	return sess, nil
}
