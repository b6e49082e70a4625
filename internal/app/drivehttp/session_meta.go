package drivehttp

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const (
	sessionsDir  = "sessions"
	filesDir     = "files"
	metaFileName = "meta.json"
	dataFileName = "data.bin"
)

// sessionMeta хранится на диске рядом с принятыми байтами сессии.
type sessionMeta struct {
	UploadID  string    `json:"upload_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Parents   []string  `json:"parents,omitempty"`
	Size      int64     `json:"size"`
	Received  int64     `json:"received"`
	FileID    string    `json:"file_id,omitempty"`
	Sha256    string    `json:"sha256,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *sessionMeta) completed() bool {
	return m.FileID != ""
}

func (m *sessionMeta) file() uploadproto.FileMetadata {
	return uploadproto.FileMetadata{
		ID:       m.FileID,
		Name:     m.Name,
		MimeType: m.MimeType,
		Size:     m.Size,
		Parents:  m.Parents,
		SHA256:   m.Sha256,
	}
}

func (a *Server) sessionDir(uploadID string) string {
	return filepath.Join(a.dataDir, sessionsDir, uploadID)
}

func (a *Server) metaPath(uploadID string) string {
	return filepath.Join(a.sessionDir(uploadID), metaFileName)
}

func (a *Server) dataPath(uploadID string) string {
	return filepath.Join(a.sessionDir(uploadID), dataFileName)
}

func (a *Server) fileIndexPath(fileID string) string {
	return filepath.Join(a.dataDir, filesDir, fileID)
}

// writeMeta атомарно перезаписывает meta.json сессии.
func writeMeta(path string, m *sessionMeta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readMeta читает метаданные сессии с диска.
func readMeta(path string) (*sessionMeta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m sessionMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

type driveError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeDriveError пишет ошибку в формате API провайдера.
func writeDriveError(w http.ResponseWriter, code int, msg string) {
	var e driveError
	e.Error.Code = code
	e.Error.Message = msg
	writeJSON(w, code, e)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
