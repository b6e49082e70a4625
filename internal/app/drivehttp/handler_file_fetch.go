package drivehttp

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// fetchFile обслуживает GET ?alt=media, возвращая содержимое собранного файла.
func (a *Server) fetchFile(w http.ResponseWriter, r *http.Request) {
	if !a.requireAuth(w, r) {
		return
	}

	fileID := chi.URLParam(r, "fileID")
	if _, err := uuid.Parse(fileID); err != nil {
		http.NotFound(w, r)
		return
	}

	b, err := os.ReadFile(a.fileIndexPath(fileID))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	uploadID := strings.TrimSpace(string(b))

	meta, err := readMeta(a.metaPath(uploadID))
	if err != nil || !meta.completed() {
		http.NotFound(w, r)
		return
	}

	if r.URL.Query().Get("alt") != "media" {
		writeJSON(w, http.StatusOK, meta.file())
		return
	}

	f, err := os.Open(a.dataPath(uploadID))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Content-Type", meta.MimeType)

	if _, err = io.Copy(w, f); err != nil {
		a.log.Warn("fetch file", "file_id", fileID, "err", err)
	}
}
