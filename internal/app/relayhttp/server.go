package relayhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sir_venger/drive_relay/internal/config"
	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/internal/provider"
	"github.com/sir_venger/drive_relay/internal/repo"
	"github.com/sir_venger/drive_relay/internal/usecase/relaysvc"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

type Server struct {
	Relay relaysvc.Service
	Store repo.Store
	Cfg   *config.Config

	log      *slog.Logger
	registry *prometheus.Registry
}

// NewServer собирает ретранслятор по конфигурации: хранилище, клиент провайдера, метрики и роутер.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (http.Handler, *Server, error) {
	if log == nil {
		log = cfg.Logger()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	relay := relaysvc.New(relaysvc.Deps{
		Provider:      provider.NewDrive(cfg.Provider.BaseURL, provider.WithTimeouts(cfg.Provider.OpenTimeout, cfg.Provider.ChunkTimeout)),
		Store:         store,
		Observer:      metrics,
		Log:           log.With("component", "relay"),
		MaxChunkBytes: cfg.MaxChunkBytes,
	})

	srv := &Server{
		Relay:    relay,
		Store:    store,
		Cfg:      cfg,
		log:      log,
		registry: reg,
	}
	return srv.routes(), srv, nil
}

// buildStore открывает хранилище и засевает токены из конфигурации.
func buildStore(ctx context.Context, cfg *config.Config) (repo.Store, error) {
	store, err := repo.Open(ctx, cfg.MetaDSN)
	if err != nil {
		return nil, fmt.Errorf("open meta store: %w", err)
	}

	for user, token := range cfg.Credentials {
		if err := store.PutCredential(ctx, models.Credential{UserID: user, AccessToken: token}); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed credential for %q: %w", user, err)
		}
	}
	return store, nil
}

func (s *Server) routes() http.Handler {
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID, middleware.Recoverer, requestLogger(s.log))

	rtr.With(s.identify).Post(uploadproto.UploadPath, s.postUpload)
	rtr.Get("/health", s.health)
	rtr.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return rtr
}

// Close освобождает хранилище.
func (s *Server) Close() {
	if s.Store != nil {
		s.Store.Close()
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
