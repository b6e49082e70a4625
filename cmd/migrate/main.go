package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sir_venger/drive_relay/internal/config"
	"github.com/sir_venger/drive_relay/internal/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := cfg.Logger()

	if repo.IsMemoryDSN(cfg.MetaDSN) {
		log.Info("memory meta store selected, skipping migrations")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repo.ApplyMigrations(ctx, cfg.MetaDSN); err != nil {
		log.Error("apply migrations", "err", err)
		os.Exit(1)
	}

	log.Info("migrations applied")
}
