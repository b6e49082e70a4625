package relayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/drive_relay/internal/app/drivehttp"
	"github.com/sir_venger/drive_relay/internal/config"
	"github.com/sir_venger/drive_relay/pkg/chunker"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const (
	testUser  = "alice"
	testToken = "alice-token"
)

func newRelay(t *testing.T, maxChunk int64) string {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	emu := httptest.NewServer(drivehttp.New(t.TempDir(), drivehttp.WithTokens(testToken), drivehttp.WithLogger(quiet)))
	t.Cleanup(emu.Close)

	cfg := config.Default()
	cfg.Provider.BaseURL = emu.URL
	cfg.MaxChunkBytes = maxChunk
	cfg.Credentials = map[string]string{testUser: testToken}

	h, srv, err := NewServer(context.Background(), &cfg, quiet)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s.URL
}

func postJSON(t *testing.T, base, user string, body any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, base+uploadproto.UploadPath, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Auth-User", user)
	}
	return do(t, req)
}

func postChunk(t *testing.T, base, user, handle string, cr uploadproto.ContentRange, data []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(uploadproto.FieldAction, uploadproto.ActionUploadChunk))
	require.NoError(t, mw.WriteField(uploadproto.FieldUploadURL, handle))
	require.NoError(t, mw.WriteField(uploadproto.FieldContentRange, cr.String()))
	fw, err := mw.CreateFormFile(uploadproto.FieldChunk, "blob")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, base+uploadproto.UploadPath, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Auth-User", user)
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func initiate(t *testing.T, base string, size int64) string {
	t.Helper()
	resp, body := postJSON(t, base, testUser, uploadproto.InitiateRequest{
		Action: uploadproto.ActionInitiate, Name: "report.pdf", Type: "application/pdf", Size: size,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out uploadproto.InitiateResponse
	require.NoError(t, json.Unmarshal(body, &out))
	_, err := uuid.Parse(out.UploadURL)
	require.NoError(t, err, "handle must be opaque")
	return out.UploadURL
}

func TestUpload_FullFlow(t *testing.T) {
	base := newRelay(t, 64)
	payload := bytes.Repeat([]byte("x"), 100)
	handle := initiate(t, base, 100)

	var last uploadproto.ChunkResponse
	for r := range chunker.Ranges(100, 40) {
		resp, body := postChunk(t, base, testUser, handle, uploadproto.NewContentRange(r, 100), payload[r.Start:r.End()])
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		last = uploadproto.ChunkResponse{}
		require.NoError(t, json.Unmarshal(body, &last))
		if r.End() < 100 {
			assert.Equal(t, uploadproto.StatusResumeIncomplete, last.Status)
			require.NotNil(t, last.Received)
			assert.Equal(t, r.End(), *last.Received)
		}
	}

	assert.True(t, last.Success)
	assert.Equal(t, http.StatusCreated, last.Status)
	require.NotNil(t, last.File)
	assert.Equal(t, "report.pdf", last.File.Name)
	assert.Equal(t, int64(100), last.File.Size)

	// Завершённая сессия забыта ретранслятором.
	resp, _ := postChunk(t, base, testUser, handle, uploadproto.StatusQuery(100), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpload_EmptyFile(t *testing.T) {
	base := newRelay(t, 64)
	handle := initiate(t, base, 0)

	resp, body := postChunk(t, base, testUser, handle, uploadproto.StatusQuery(0), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out uploadproto.ChunkResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Success)
}

func TestUpload_Status(t *testing.T) {
	base := newRelay(t, 64)
	handle := initiate(t, base, 100)

	resp, _ := postChunk(t, base, testUser, handle, uploadproto.ContentRange{Start: 0, Length: 40, Total: 100}, make([]byte, 40))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, base, testUser, uploadproto.StatusRequest{Action: uploadproto.ActionStatus, UploadURL: handle})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out uploadproto.ChunkResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, uploadproto.StatusResumeIncomplete, out.Status)
	require.NotNil(t, out.Received)
	assert.Equal(t, int64(40), *out.Received)
}

func TestUpload_Errors(t *testing.T) {
	base := newRelay(t, 64)
	handle := initiate(t, base, 100)

	cases := []struct {
		name string
		send func() (*http.Response, []byte)
		code int
	}{
		{"missing identity", func() (*http.Response, []byte) {
			return postJSON(t, base, "", uploadproto.InitiateRequest{Action: uploadproto.ActionInitiate, Name: "a", Size: 1})
		}, http.StatusUnauthorized},
		{"user without credential", func() (*http.Response, []byte) {
			return postJSON(t, base, "bob", uploadproto.InitiateRequest{Action: uploadproto.ActionInitiate, Name: "a", Size: 1})
		}, http.StatusUnauthorized},
		{"unknown action", func() (*http.Response, []byte) {
			return postJSON(t, base, testUser, map[string]string{"action": "delete"})
		}, http.StatusBadRequest},
		{"missing size", func() (*http.Response, []byte) {
			return postJSON(t, base, testUser, map[string]string{"action": "initiate", "name": "a"})
		}, http.StatusBadRequest},
		{"unknown session", func() (*http.Response, []byte) {
			return postChunk(t, base, testUser, uuid.NewString(), uploadproto.ContentRange{Start: 0, Length: 1, Total: 100}, []byte("x"))
		}, http.StatusNotFound},
		{"foreign session", func() (*http.Response, []byte) {
			return postChunk(t, base, "mallory", handle, uploadproto.ContentRange{Start: 0, Length: 1, Total: 100}, []byte("x"))
		}, http.StatusNotFound},
		{"chunk too large", func() (*http.Response, []byte) {
			return postChunk(t, base, testUser, handle, uploadproto.ContentRange{Start: 0, Length: 65, Total: 100}, make([]byte, 65))
		}, http.StatusRequestEntityTooLarge},
		{"length mismatch", func() (*http.Response, []byte) {
			return postChunk(t, base, testUser, handle, uploadproto.ContentRange{Start: 0, Length: 10, Total: 100}, make([]byte, 9))
		}, http.StatusBadRequest},
		{"total mismatch", func() (*http.Response, []byte) {
			return postChunk(t, base, testUser, handle, uploadproto.ContentRange{Start: 0, Length: 10, Total: 101}, make([]byte, 10))
		}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := tc.send()
			assert.Equal(t, tc.code, resp.StatusCode, string(body))

			var e uploadproto.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestUpload_ProviderRejectionIsRelayed(t *testing.T) {
	base := newRelay(t, 64)
	handle := initiate(t, base, 100)

	// Разрыв: провайдер ещё не принял байты 0..49.
	resp, body := postChunk(t, base, testUser, handle, uploadproto.ContentRange{Start: 50, Length: 10, Total: 100}, make([]byte, 10))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out uploadproto.ChunkResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, http.StatusBadRequest, out.Status)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Message)
}

func TestUpload_UnsupportedContentType(t *testing.T) {
	base := newRelay(t, 64)
	req, err := http.NewRequest(http.MethodPost, base+uploadproto.UploadPath, bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Auth-User", testUser)

	resp, _ := do(t, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	base := newRelay(t, 64)
	initiate(t, base, 10)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `drive_relay_initiations_total{result="ok"} 1`)
}
