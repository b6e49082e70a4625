package uploadclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

// Proxy: клиентская сторона same-origin прокси загрузки.
type Proxy interface {
	// Initiate открывает сессию и возвращает её непрозрачный идентификатор.
	Initiate(ctx context.Context, req uploadproto.InitiateRequest) (string, error)
	// SendChunk пересылает один диапазон. Ответ прокси с ошибкой приходит как uploadproto.Failed,
	// error означает, что HTTP-статус не получен.
	SendChunk(ctx context.Context, uploadURL string, cr uploadproto.ContentRange, chunk io.Reader) (uploadproto.Outcome, error)
	// Status возвращает подтверждённое провайдером число байт.
	Status(ctx context.Context, uploadURL string) (uploadproto.Outcome, error)
}

// HTTPProxy ходит в POST /upload ретранслятора.
type HTTPProxy struct {
	c          *resty.Client
	userHeader string
	user       string
}

type ProxyOption func(*HTTPProxy)

// WithUser выставляет доверенный заголовок с идентификатором пользователя.
func WithUser(header, user string) ProxyOption {
	return func(p *HTTPProxy) {
		p.userHeader = header
		p.user = user
	}
}

// WithHTTPClient подменяет транспорт, например для тестов или TLS.
func WithHTTPClient(hc *http.Client) ProxyOption {
	return func(p *HTTPProxy) {
		p.c = resty.NewWithClient(hc)
	}
}

// NewHTTPProxy создаёт клиента ретранслятора по базовому адресу сайта.
func NewHTTPProxy(baseURL string, opts ...ProxyOption) *HTTPProxy {
	p := &HTTPProxy{c: resty.New()}
	for _, opt := range opts {
		opt(p)
	}
	p.c.SetBaseURL(strings.TrimRight(baseURL, "/"))
	return p
}

var _ Proxy = (*HTTPProxy)(nil)

func (p *HTTPProxy) request(ctx context.Context) *resty.Request {
	r := p.c.R().SetContext(ctx)
	if p.userHeader != "" && p.user != "" {
		r.SetHeader(p.userHeader, p.user)
	}
	return r
}

func (p *HTTPProxy) Initiate(ctx context.Context, req uploadproto.InitiateRequest) (string, error) {
	req.Action = uploadproto.ActionInitiate

	resp, err := p.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(uploadproto.UploadPath)
	if err != nil {
		return "", err
	}

	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		ie := &InitiationError{Status: resp.StatusCode(), Message: errorMessage(raw)}
		if resp.StatusCode() == http.StatusUnauthorized {
			ie.Err = ErrAuth
		}
		return "", ie
	}

	var out uploadproto.InitiateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &InitiationError{Status: resp.StatusCode(), Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	if out.UploadURL == "" {
		return "", &InitiationError{Status: resp.StatusCode(), Message: "response has no uploadUrl"}
	}
	return out.UploadURL, nil
}

func (p *HTTPProxy) SendChunk(ctx context.Context, uploadURL string, cr uploadproto.ContentRange, chunk io.Reader) (uploadproto.Outcome, error) {
	resp, err := p.request(ctx).
		SetMultipartFormData(map[string]string{
			uploadproto.FieldAction:       uploadproto.ActionUploadChunk,
			uploadproto.FieldUploadURL:    uploadURL,
			uploadproto.FieldContentRange: cr.String(),
		}).
		SetFileReader(uploadproto.FieldChunk, "blob", chunk).
		Post(uploadproto.UploadPath)
	if err != nil {
		return nil, err
	}
	return decodeOutcome(resp), nil
}

func (p *HTTPProxy) Status(ctx context.Context, uploadURL string) (uploadproto.Outcome, error) {
	resp, err := p.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(uploadproto.StatusRequest{Action: uploadproto.ActionStatus, UploadURL: uploadURL}).
		Post(uploadproto.UploadPath)
	if err != nil {
		return nil, err
	}
	return decodeOutcome(resp), nil
}

func decodeOutcome(resp *resty.Response) uploadproto.Outcome {
	raw := resp.Body()
	var body uploadproto.ChunkResponse
	_ = json.Unmarshal(raw, &body)
	return uploadproto.FromResponse(resp.StatusCode(), body, raw)
}

// errorMessage достаёт message из JSON-ошибки прокси или обрезает сырое тело.
func errorMessage(raw []byte) string {
	var e uploadproto.ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return uploadproto.Excerpt(raw, uploadproto.ExcerptLimit)
}
