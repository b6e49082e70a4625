package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sir_venger/drive_relay/internal/app/relayhttp"
	"github.com/sir_venger/drive_relay/internal/config"
	"github.com/sir_venger/drive_relay/internal/usecase/relaysvc"
)

// main поднимает прокси загрузки и корректно завершает его по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, srv, err := relayhttp.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("build relay", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	stopGC := relaysvc.StartGC(srv.Relay, cfg.SessionTTL, cfg.GCInterval, log)
	defer stopGC()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Сценарий graceful shutdown при получении SIGTERM/SIGINT.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("relay shutdown", "err", err)
		}
	}()

	log.Info("relay listening", "addr", cfg.ListenAddr, "provider", cfg.Provider.BaseURL, "meta", redactDSN(cfg.MetaDSN))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("relay serve", "err", err)
		os.Exit(1)
	}
}

// redactDSN скрывает пароль в DSN для логов.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	return dsn
}
