package httperrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

// Status подбирает HTTP-код для ошибки ретранслятора.
func Status(err error) int {
	var perr *models.ProviderError
	switch {
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrChunkTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrBadRange), errors.Is(err, models.ErrBadRequest), errors.Is(err, uploadproto.ErrMalformedRange):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		if perr.Status == http.StatusUnauthorized {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// Write пишет ошибку в виде JSON {"message": ...}.
func Write(w http.ResponseWriter, err error) {
	WriteMessage(w, Status(err), err.Error())
}

// WriteMessage пишет произвольное сообщение об ошибке с кодом.
func WriteMessage(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(uploadproto.ErrorResponse{Message: msg})
}
