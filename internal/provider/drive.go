// Package provider реализует клиент возобновляемой загрузки облачного хранилища (протокол Google Drive).
// Все вызовы идут с bearer-токеном пользователя, который не покидает сервер.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const sessionPath = "/upload/drive/v3/files"

// OpenRequest: параметры новой возобновляемой сессии.
type OpenRequest struct {
	Name     string
	MimeType string
	Size     int64
	ParentID string
}

type openMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

// Drive выполняет HTTP-операции над сессиями провайдера. Повторов не делает:
// политика повторов принадлежит клиенту-оркестратору.
type Drive struct {
	c            *resty.Client
	openTimeout  time.Duration
	chunkTimeout time.Duration
}

type Option func(*Drive)

// WithTimeouts задаёт таймауты открытия сессии и отправки части.
func WithTimeouts(open, chunk time.Duration) Option {
	return func(d *Drive) {
		d.openTimeout = open
		d.chunkTimeout = chunk
	}
}

// NewDrive создаёт клиента провайдера с базовым адресом API.
func NewDrive(baseURL string, opts ...Option) *Drive {
	d := &Drive{
		c:            resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
		openTimeout:  30 * time.Second,
		chunkTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	// 308: это "Resume Incomplete", а не редирект.
	d.c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	return d
}

// OpenSession открывает сессию и возвращает её URL из заголовка Location.
func (d *Drive) OpenSession(ctx context.Context, token string, req OpenRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, d.openTimeout)
	defer cancel()

	meta := openMetadata{Name: req.Name, MimeType: req.MimeType}
	if req.ParentID != "" {
		meta.Parents = []string{req.ParentID}
	}

	r := d.c.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("uploadType", "resumable").
		SetHeader("Content-Type", "application/json; charset=UTF-8").
		SetHeader(uploadproto.HeaderUploadLength, strconv.FormatInt(req.Size, 10)).
		SetBody(meta)
	if req.MimeType != "" {
		r.SetHeader(uploadproto.HeaderUploadContentType, req.MimeType)
	}

	resp, err := r.Post(sessionPath)
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return "", &models.ProviderError{Op: "open session", Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	location := strings.TrimSpace(resp.Header().Get(uploadproto.HeaderLocation))
	if location == "" {
		return "", &models.ProviderError{Op: "open session", Status: resp.StatusCode(), Body: "response has no Location header"}
	}
	return location, nil
}

// SendRange отправляет ровно cr.Length байт в сессию и классифицирует ответ.
func (d *Drive) SendRange(ctx context.Context, token, sessionURL string, cr uploadproto.ContentRange, body []byte) (uploadproto.Outcome, error) {
	if int64(len(body)) != cr.Length {
		return nil, fmt.Errorf("%w: body has %d bytes, range %s", models.ErrBadRange, len(body), cr)
	}

	ctx, cancel := withTimeout(ctx, d.chunkTimeout)
	defer cancel()

	r := d.c.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(uploadproto.HeaderContentRange, cr.String()).
		SetHeader("Content-Type", "application/octet-stream")
	// resty отвергает пустой []byte как тело.
	if len(body) > 0 {
		r.SetBody(body)
	}

	resp, err := r.Put(sessionURL)
	if err != nil {
		return nil, fmt.Errorf("send range %s: %w", cr, err)
	}

	return uploadproto.Classify(resp.StatusCode(), resp.Header().Get(uploadproto.HeaderRange), resp.Body()), nil
}

// QueryStatus спрашивает у провайдера, сколько байт сессия уже приняла.
// Для статус-запроса отсутствие заголовка Range означает ноль принятых байт.
func (d *Drive) QueryStatus(ctx context.Context, token, sessionURL string, total int64) (uploadproto.Outcome, error) {
	ctx, cancel := withTimeout(ctx, d.openTimeout)
	defer cancel()

	resp, err := d.c.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(uploadproto.HeaderContentRange, uploadproto.StatusQuery(total).String()).
		Put(sessionURL)
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}

	out := uploadproto.Classify(resp.StatusCode(), resp.Header().Get(uploadproto.HeaderRange), resp.Body())
	if c, ok := out.(uploadproto.Continue); ok && c.Received < 0 {
		out = uploadproto.Continue{Received: 0}
	}
	return out, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
