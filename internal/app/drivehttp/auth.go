package drivehttp

import (
	"net/http"
	"strings"
)

// authorized проверяет bearer-токен запроса.
func (a *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return false
	}
	if len(a.tokens) == 0 {
		return true
	}
	_, known := a.tokens[token]
	return known
}

func (a *Server) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	if a.authorized(r) {
		return true
	}
	writeDriveError(w, http.StatusUnauthorized, "invalid credentials")
	return false
}
