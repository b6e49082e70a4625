package relaysvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/internal/provider"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

type (
	// Provider: операции возобновляемой сессии облачного хранилища.
	Provider interface {
		OpenSession(ctx context.Context, token string, req provider.OpenRequest) (string, error)
		SendRange(ctx context.Context, token, sessionURL string, cr uploadproto.ContentRange, body []byte) (uploadproto.Outcome, error)
		QueryStatus(ctx context.Context, token, sessionURL string, total int64) (uploadproto.Outcome, error)
	}

	// Store хранит сессии загрузки и токены провайдера.
	Store interface {
		SaveSession(ctx context.Context, sess models.UploadSession) error
		GetSession(ctx context.Context, id string) (models.UploadSession, error)
		DeleteSession(ctx context.Context, id string) error
		DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)
		Credential(ctx context.Context, userID string) (models.Credential, error)
	}

	// Observer получает события ретранслятора (метрики).
	Observer interface {
		ObserveInitiate(err error, d time.Duration)
		ObserveChunk(out uploadproto.Outcome, err error, bytes int64, d time.Duration)
	}

	// Service: серверная половина прокси загрузки.
	Service interface {
		Initiate(ctx context.Context, userID string, req InitiateRequest) (string, error)
		SendChunk(ctx context.Context, userID, handle string, cr uploadproto.ContentRange, body []byte) (uploadproto.Outcome, error)
		Status(ctx context.Context, userID, handle string) (uploadproto.Outcome, error)
		Sweep(ctx context.Context, ttl time.Duration) (int, error)
	}
)

// InitiateRequest: параметры новой загрузки от браузера.
type InitiateRequest struct {
	Name     string
	MimeType string
	Size     int64
	ParentID string
}

type Deps struct {
	Provider      Provider
	Store         Store
	Observer      Observer
	Log           *slog.Logger
	MaxChunkBytes int64
	Now           func() time.Time
}

type Relay struct {
	Deps
}

// New конструирует ретранслятор с заданными зависимостями.
func New(deps Deps) *Relay {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Relay{Deps: deps}
}

var _ Service = (*Relay)(nil)

type nopObserver struct{}

func (nopObserver) ObserveInitiate(error, time.Duration)                              {}
func (nopObserver) ObserveChunk(uploadproto.Outcome, error, int64, time.Duration) {}
