package drivehttp

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
)

// healthStats — payload ответа /health.
type healthStats struct {
	OK         bool  `json:"ok"`
	Sessions   int   `json:"sessions"`
	TotalBytes int64 `json:"total_bytes"`
}

// health возвращает агрегированную статистику по данным эмулятора.
func (a *Server) health(w http.ResponseWriter, r *http.Request) {
	var total int64
	err := filepath.WalkDir(a.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()

		return nil
	})

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sessions, _ := os.ReadDir(filepath.Join(a.dataDir, sessionsDir))

	writeJSON(w, http.StatusOK, healthStats{
		OK:         true,
		Sessions:   len(sessions),
		TotalBytes: total,
	})
}
