package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sir_venger/drive_relay/internal/models"
)

const (
	sessionsTable    = "upload_sessions"
	credentialsTable = "provider_credentials"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGStore сохраняет сессии загрузки и токены в Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore создаёт пул подключений к Postgres. Схему создаёт cmd/migrate.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("meta dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &PGStore{pool: pool}, nil
}

// SaveSession записывает (или обновляет) сессию загрузки.
func (s *PGStore) SaveSession(ctx context.Context, sess models.UploadSession) error {
	sqlStr, args, err := psql.
		Insert(sessionsTable).
		Columns("id", "user_id", "provider_url", "file_name", "mime_type", "size", "parent_id", "created_at").
		Values(sess.ID, sess.UserID, sess.ProviderURL, sess.Name, sess.MimeType, sess.Size, sess.ParentID, sess.CreatedAt).
		Suffix(`
			ON CONFLICT (id) DO UPDATE
			SET provider_url = EXCLUDED.provider_url,
				size         = EXCLUDED.size`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert sql: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}
	return nil
}

// GetSession возвращает сессию по её идентификатору.
func (s *PGStore) GetSession(ctx context.Context, id string) (models.UploadSession, error) {
	if strings.TrimSpace(id) == "" {
		return models.UploadSession{}, models.ErrSessionNotFound
	}

	sqlStr, args, err := psql.
		Select("user_id", "provider_url", "file_name", "mime_type", "size", "parent_id", "created_at").
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return models.UploadSession{}, fmt.Errorf("build select: %w", err)
	}

	sess := models.UploadSession{ID: id}
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(
		&sess.UserID, &sess.ProviderURL, &sess.Name, &sess.MimeType, &sess.Size, &sess.ParentID, &sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UploadSession{}, models.ErrSessionNotFound
		}
		return models.UploadSession{}, fmt.Errorf("scan session row: %w", err)
	}

	return sess, nil
}

func (s *PGStore) DeleteSession(ctx context.Context, id string) error {
	sqlStr, args, err := psql.Delete(sessionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec delete: %w", err)
	}
	return nil
}

// DeleteSessionsBefore удаляет устаревшие сессии.
func (s *PGStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	sqlStr, args, err := psql.Delete(sessionsTable).Where(sq.Lt{"created_at": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("exec delete: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Credential возвращает токен провайдера пользователя или models.ErrAuth.
func (s *PGStore) Credential(ctx context.Context, userID string) (models.Credential, error) {
	sqlStr, args, err := psql.
		Select("access_token", "expires_at").
		From(credentialsTable).
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return models.Credential{}, fmt.Errorf("build select: %w", err)
	}

	var (
		token   string
		expires *time.Time
	)
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&token, &expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credential{}, models.ErrAuth
		}
		return models.Credential{}, fmt.Errorf("scan credential row: %w", err)
	}

	c := models.Credential{UserID: userID, AccessToken: token}
	if expires != nil {
		c.ExpiresAt = *expires
	}
	return c, nil
}

// PutCredential записывает токен, полученный внешним провайдером сессий.
func (s *PGStore) PutCredential(ctx context.Context, c models.Credential) error {
	var expires *time.Time
	if !c.ExpiresAt.IsZero() {
		expires = &c.ExpiresAt
	}

	sqlStr, args, err := psql.
		Insert(credentialsTable).
		Columns("user_id", "access_token", "expires_at", "updated_at").
		Values(c.UserID, c.AccessToken, expires, sq.Expr("now()")).
		Suffix(`
			ON CONFLICT (user_id) DO UPDATE
			SET access_token = EXCLUDED.access_token,
				expires_at   = EXCLUDED.expires_at,
				updated_at   = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert sql: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}
	return nil
}

// Close освобождает подключения пула.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
