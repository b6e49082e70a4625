package drivehttp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const maxMetadataBytes = 64 << 10

type openRequest struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents"`
}

// openSession создаёт возобновляемую сессию и возвращает её URL в заголовке Location.
func (a *Server) openSession(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w, r) {
		return
	}
	if r.URL.Query().Get("uploadType") != "resumable" {
		writeDriveError(w, http.StatusBadRequest, "only uploadType=resumable is supported")
		return
	}

	size, err := strconv.ParseInt(r.Header.Get(uploadproto.HeaderUploadLength), 10, 64)
	if err != nil || size < 0 {
		writeDriveError(w, http.StatusBadRequest, "invalid "+uploadproto.HeaderUploadLength)
		return
	}

	var req openRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMetadataBytes)).Decode(&req); err != nil && err != io.EOF {
		writeDriveError(w, http.StatusBadRequest, fmt.Sprintf("invalid metadata: %v", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = "Untitled"
	}
	if req.MimeType == "" {
		req.MimeType = r.Header.Get(uploadproto.HeaderUploadContentType)
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}

	meta := &sessionMeta{
		UploadID:  uuid.NewString(),
		Name:      req.Name,
		MimeType:  req.MimeType,
		Parents:   req.Parents,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}

	if err := os.MkdirAll(a.sessionDir(meta.UploadID), 0o755); err != nil {
		writeDriveError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.WriteFile(a.dataPath(meta.UploadID), nil, 0o644); err != nil {
		writeDriveError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := writeMeta(a.metaPath(meta.UploadID), meta); err != nil {
		writeDriveError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.log.Debug("session opened", "upload_id", meta.UploadID, "name", meta.Name, "size", size)
	w.Header().Set(uploadproto.HeaderLocation, a.sessionURL(r, meta.UploadID))
	w.WriteHeader(http.StatusOK)
}

// sessionURL строит абсолютный URL сессии.
func (a *Server) sessionURL(r *http.Request, uploadID string) string {
	base := a.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}

	q := url.Values{}
	q.Set("uploadType", "resumable")
	q.Set("upload_id", uploadID)
	return strings.TrimRight(base, "/") + sessionPath + "?" + q.Encode()
}
