package integration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sir_venger/drive_relay/internal/app/drivehttp"
	"github.com/sir_venger/drive_relay/internal/app/relayhttp"
	"github.com/sir_venger/drive_relay/internal/config"
	"github.com/sir_venger/drive_relay/pkg/uploadclient"
)

const (
	user  = "alice"
	token = "alice-drive-token"
)

type stack struct {
	drive   *httptest.Server
	relay   *httptest.Server
	dataDir string
}

// newStack поднимает эмулятор провайдера и ретранслятор перед ним.
// wrap позволяет вставить middleware между ретранслятором и эмулятором.
func newStack(t *testing.T, wrap func(http.Handler) http.Handler) *stack {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	dataDir := t.TempDir()
	var emu http.Handler = drivehttp.New(dataDir, drivehttp.WithTokens(token), drivehttp.WithLogger(quiet))
	if wrap != nil {
		emu = wrap(emu)
	}
	drive := httptest.NewServer(emu)
	t.Cleanup(drive.Close)

	cfg := config.Default()
	cfg.ListenAddr = ":0"
	cfg.Provider.BaseURL = drive.URL
	cfg.Credentials = map[string]string{user: token}

	h, srv, err := relayhttp.NewServer(context.Background(), &cfg, quiet)
	if err != nil {
		t.Fatalf("new relay server: %v", err)
	}
	t.Cleanup(srv.Close)

	relay := httptest.NewServer(h)
	t.Cleanup(relay.Close)

	return &stack{drive: drive, relay: relay, dataDir: dataDir}
}

func (s *stack) proxy() *uploadclient.HTTPProxy {
	return uploadclient.NewHTTPProxy(s.relay.URL, uploadclient.WithUser("X-Auth-User", user))
}

func (s *stack) download(t *testing.T, fileID string) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.drive.URL+"/drive/v3/files/"+fileID+"?alt=media", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download %s: %s", fileID, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func payload(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i*31) ^ seed
	}
	return b
}

func source(name string, data []byte) uploadclient.Source {
	return uploadclient.Source{Name: name, MimeType: "application/octet-stream", Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
