package repo

import (
	"context"
	"strings"
	"time"

	"github.com/sir_venger/drive_relay/internal/models"
)

const memoryDSNPrefix = "memory://"

// Store объединяет хранилище сессий загрузки и токенов провайдера.
type Store interface {
	SaveSession(ctx context.Context, sess models.UploadSession) error
	GetSession(ctx context.Context, id string) (models.UploadSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)

	Credential(ctx context.Context, userID string) (models.Credential, error)
	PutCredential(ctx context.Context, c models.Credential) error

	Close()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PGStore)(nil)
)

// IsMemoryDSN сообщает, что DSN выбирает in-memory хранилище.
func IsMemoryDSN(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	return dsn == "" || strings.HasPrefix(dsn, memoryDSNPrefix)
}

// Open выбирает реализацию по DSN. Пустой DSN или memory:// дают память, остальное Postgres.
func Open(ctx context.Context, dsn string) (Store, error) {
	if IsMemoryDSN(dsn) {
		return NewMemoryStore(), nil
	}
	return NewPGStore(ctx, dsn)
}
