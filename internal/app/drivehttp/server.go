package drivehttp

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

const (
	sessionPath = "/upload/drive/v3/files"
	filesPath   = "/drive/v3/files/{fileID}"
)

// Server serves a Drive-compatible resumable upload API on top of the local filesystem.
type Server struct {
	dataDir   string
	tokens    map[string]struct{}
	publicURL string
	log       *slog.Logger

	// mu сериализует изменения сессий: провайдер принимает диапазоны строго по порядку.
	mu sync.Mutex
}

type Option func(*Server)

// WithTokens ограничивает допустимые bearer-токены. Без списка принимается любой непустой токен.
func WithTokens(tokens ...string) Option {
	return func(s *Server) {
		for _, t := range tokens {
			if t != "" {
				s.tokens[t] = struct{}{}
			}
		}
	}
}

// WithPublicURL задаёт базовый адрес для URL сессий вместо Host из запроса.
func WithPublicURL(u string) Option {
	return func(s *Server) { s.publicURL = u }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New создаёт HTTP-обработчик эмулятора поверх каталога с данными.
func New(dataDir string, opts ...Option) http.Handler {
	srv := &Server{
		dataDir: dataDir,
		tokens:  map[string]struct{}{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	return srv.routes()
}

// routes регистрирует обработчики сессий, файлов, здоровья и GC.
func (a *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Post(sessionPath, a.openSession)
	r.Put(sessionPath, a.putRange)
	r.Get(filesPath, a.fetchFile)

	r.Get("/health", a.health)
	r.HandleFunc("/admin/gc", a.gcOnce)

	return r
}
