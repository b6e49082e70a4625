package models

import (
	"errors"
	"fmt"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

var (
	ErrAuth            = errors.New("no valid provider credential for user")
	ErrSessionNotFound = errors.New("upload session not found")
	ErrBadRange        = errors.New("content range does not match upload session")
	ErrChunkTooLarge   = errors.New("chunk exceeds relay limit")
	ErrBadRequest      = errors.New("bad request")
)

// ProviderError: провайдер ответил не-2xx при открытии или опросе сессии.
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: status %d: %s", e.Op, e.Status, uploadproto.Excerpt([]byte(e.Body), uploadproto.ExcerptLimit))
}
