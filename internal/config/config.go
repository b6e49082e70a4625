package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider описывает подключение к облачному хранилищу.
type Provider struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	OpenTimeout  time.Duration `yaml:"open_timeout" json:"open_timeout"`
	ChunkTimeout time.Duration `yaml:"chunk_timeout" json:"chunk_timeout"`
}

type Config struct {
	ListenAddr    string        `yaml:"listen_addr" json:"listen_addr"`
	MetaDSN       string        `yaml:"meta_dsn" json:"meta_dsn"`
	Provider      Provider      `yaml:"provider" json:"provider"`
	UserHeader    string        `yaml:"user_header" json:"user_header"`
	MaxChunkBytes int64         `yaml:"max_chunk_bytes" json:"max_chunk_bytes"`
	SessionTTL    time.Duration `yaml:"session_ttl" json:"session_ttl"`
	GCInterval    time.Duration `yaml:"gc_interval" json:"gc_interval"`
	LogLevel      string        `yaml:"log_level" json:"log_level"`
	LogFormat     string        `yaml:"log_format" json:"log_format"`
	// Credentials засевает in-memory хранилище токенов (user -> bearer), только для локального запуска.
	Credentials map[string]string `yaml:"credentials" json:"-"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		MetaDSN:    "memory://",
		Provider: Provider{
			BaseURL:      "https://www.googleapis.com",
			OpenTimeout:  30 * time.Second,
			ChunkTimeout: 5 * time.Minute,
		},
		UserHeader:    "X-Auth-User",
		MaxChunkBytes: 8 << 20,
		SessionTTL:    24 * time.Hour,
		GCInterval:    30 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load читает YAML-конфигурацию, применяет ENV-переопределения и возвращает актуальную структуру.
// Отсутствующий файл не ошибка: остаются значения по умолчанию и ENV.
func Load() (*Config, error) {
	c := Default()

	path := getenv("CONFIG_PATH", "./config.yaml")
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func applyEnv(c *Config) error {
	// ENV override
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("META_DSN"); v != "" {
		c.MetaDSN = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("USER_HEADER"); v != "" {
		c.UserHeader = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("MAX_CHUNK_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_CHUNK_BYTES: %w", err)
		}
		c.MaxChunkBytes = n
	}
	for key, dst := range map[string]*time.Duration{
		"SESSION_TTL":            &c.SessionTTL,
		"GC_INTERVAL":            &c.GCInterval,
		"PROVIDER_OPEN_TIMEOUT":  &c.Provider.OpenTimeout,
		"PROVIDER_CHUNK_TIMEOUT": &c.Provider.ChunkTimeout,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("CREDENTIALS"); v != "" {
		creds, err := splitPairs(v)
		if err != nil {
			return fmt.Errorf("CREDENTIALS: %w", err)
		}
		c.Credentials = creds
	}

	return nil
}

// Validate проверяет обязательные параметры.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen_addr is empty")
	}
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return fmt.Errorf("provider.base_url is empty")
	}
	if strings.TrimSpace(c.UserHeader) == "" {
		return fmt.Errorf("user_header is empty")
	}
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("max_chunk_bytes must be > 0")
	}
	return nil
}

// Logger строит slog-логгер по log_level/log_format.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// splitPairs разбирает "user=token,user2=token2".
func splitPairs(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("bad pair %q", p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return out, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}
