package drivehttp

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const manualGCTTL = 24 * time.Hour

// gcOnce вручную запускает сбор заброшенных сессий.
func (a *Server) gcOnce(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	removed, err := sweepOnce(a.dataDir, manualGCTTL)
	a.mu.Unlock()
	if err != nil {
		a.log.Warn("manual gc", "err", err)
	}
	a.log.Info("manual gc", "removed", removed)
	w.WriteHeader(http.StatusNoContent)
}

// StartGC стартует периодическую очистку незавершённых сессий.
func StartGC(root string, ttl time.Duration, every time.Duration, log *slog.Logger) func() {
	if every <= 0 || ttl <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				if n, err := sweepOnce(root, ttl); err != nil {
					log.Warn("session gc", "err", err)
				} else if n > 0 {
					log.Info("session gc", "removed", n)
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}

// sweepOnce удаляет каталоги сессий, у которых meta.json устарел, а файл так и не собран.
func sweepOnce(root string, ttl time.Duration) (int, error) {
	now := time.Now()
	base := filepath.Join(root, sessionsDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		sdir := filepath.Join(base, e.Name())
		metaPath := filepath.Join(sdir, metaFileName)
		fi, err := os.Stat(metaPath)
		if err != nil {
			continue
		}

		if now.Sub(fi.ModTime()) < ttl {
			continue
		}

		m, err := readMeta(metaPath)
		if err != nil {
			continue
		}

		if !m.completed() {
			if err := os.RemoveAll(sdir); err == nil {
				removed++
			}
		}
	}

	return removed, nil
}
