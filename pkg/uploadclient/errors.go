package uploadclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sir_venger/drive_relay/pkg/chunker"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

var (
	// ErrAuth: у пользователя нет привязанного действующего токена провайдера.
	ErrAuth = errors.New("no linked provider credential, re-authenticate")
	// ErrNotIdle: Start вызван у уже запущенной загрузки.
	ErrNotIdle = errors.New("transfer already started")
)

// InitiationError: сессию загрузки открыть не удалось.
type InitiationError struct {
	Status  int
	Message string
	Err     error
}

func (e *InitiationError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("initiate upload: %s", e.Message)
	}
	return fmt.Sprintf("initiate upload: status %d: %s", e.Status, e.Message)
}

func (e *InitiationError) Unwrap() error { return e.Err }

// ChunkUploadError: провайдер или прокси отверг диапазон байт.
type ChunkUploadError struct {
	Range  chunker.Range
	Status int
	Body   string
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("upload %s: status %d: %s", describe(e.Range), e.Status, uploadproto.Excerpt([]byte(e.Body), uploadproto.ExcerptLimit))
}

// Is позволяет проверять отказ авторизации через errors.Is(err, ErrAuth).
func (e *ChunkUploadError) Is(target error) bool {
	return target == ErrAuth && e.Status == http.StatusUnauthorized
}

// NetworkError: ответ с HTTP-статусом так и не получен.
type NetworkError struct {
	Range chunker.Range
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upload %s: %v", describe(e.Range), e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func describe(r chunker.Range) string {
	if r.Length == 0 {
		return fmt.Sprintf("empty range at %d", r.Start)
	}
	return fmt.Sprintf("bytes %d-%d", r.Start, r.End()-1)
}
