package repo

import (
	"context"
	"sync"
	"time"

	"github.com/sir_venger/drive_relay/internal/models"
)

// MemoryStore хранит сессии и токены только в оперативной памяти; удобно для тестов и локального запуска.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]models.UploadSession
	credentials map[string]models.Credential
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    map[string]models.UploadSession{},
		credentials: map[string]models.Credential{},
	}
}

func (s *MemoryStore) SaveSession(_ context.Context, sess models.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (models.UploadSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.UploadSession{}, models.ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteSessionsBefore удаляет сессии, созданные раньше cutoff, и возвращает их число.
func (s *MemoryStore) DeleteSessionsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Credential(_ context.Context, userID string) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[userID]
	if !ok {
		return models.Credential{}, models.ErrAuth
	}
	return c, nil
}

func (s *MemoryStore) PutCredential(_ context.Context, c models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.UserID] = c
	return nil
}

func (s *MemoryStore) Close() {}
