package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sir_venger/drive_relay/internal/app/drivehttp"
)

const (
	defaultAddr          = ":8081"
	dataDirEnv           = "DATA_DIR"
	tokensEnv            = "DRIVE_TOKENS"
	publicURLEnv         = "PUBLIC_URL"
	gcTTLHoursEnv        = "GC_TTL_HOURS"
	gcIntervalMinEnv     = "GC_INTERVAL_MIN"
	defaultDataDir       = "/data"
	defaultGCTTLHours    = 24
	defaultGCIntervalMin = 30
)

// main запускает локальный эмулятор возобновляемой загрузки Drive.
func main() {
	addr := flag.String("addr", defaultAddr, "listen address")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "fakedrive")

	dataDir := os.Getenv(dataDirEnv)
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Error("data dir", "err", err)
		os.Exit(1)
	}

	var tokens []string
	if v := os.Getenv(tokensEnv); v != "" {
		tokens = strings.Split(v, ",")
	}
	h := drivehttp.New(dataDir,
		drivehttp.WithTokens(tokens...),
		drivehttp.WithPublicURL(os.Getenv(publicURLEnv)),
		drivehttp.WithLogger(log),
	)

	// Фоновый GC заброшенных сессий.
	gcTTLHours := envInt(gcTTLHoursEnv, defaultGCTTLHours)
	gcEveryMin := envInt(gcIntervalMinEnv, defaultGCIntervalMin)
	stopGC := drivehttp.StartGC(dataDir, time.Duration(gcTTLHours)*time.Hour, time.Duration(gcEveryMin)*time.Minute, log)
	defer stopGC()

	server := &http.Server{Addr: *addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			log.Warn("shutdown", "err", err)
		}
	}()

	log.Info("listening", "addr", *addr, "data_dir", dataDir, "gc_ttl_h", gcTTLHours, "gc_every_m", gcEveryMin, "tokens", len(tokens))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
}

// envInt возвращает целочисленное значение из переменной окружения либо дефолт.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
