package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/drive_relay/internal/app/drivehttp"
	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const token = "secret-token"

func newEmulator(t *testing.T) *Drive {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := httptest.NewServer(drivehttp.New(t.TempDir(), drivehttp.WithTokens(token), drivehttp.WithLogger(quiet)))
	t.Cleanup(s.Close)
	return NewDrive(s.URL)
}

func TestDrive_ResumableRoundTrip(t *testing.T) {
	d := newEmulator(t)
	ctx := context.Background()

	loc, err := d.OpenSession(ctx, token, OpenRequest{Name: "a.txt", MimeType: "text/plain", Size: 10, ParentID: "root"})
	require.NoError(t, err)
	assert.Contains(t, loc, "upload_id=")

	status, err := d.QueryStatus(ctx, token, loc, 10)
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Continue{Received: 0}, status)

	out, err := d.SendRange(ctx, token, loc, uploadproto.ContentRange{Start: 0, Length: 6, Total: 10}, []byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Continue{Received: 6}, out)

	status, err = d.QueryStatus(ctx, token, loc, 10)
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Continue{Received: 6}, status)

	out, err = d.SendRange(ctx, token, loc, uploadproto.ContentRange{Start: 6, Length: 4, Total: 10}, []byte("ghij"))
	require.NoError(t, err)
	done, ok := out.(uploadproto.Complete)
	require.True(t, ok, "%#v", out)
	assert.Equal(t, http.StatusCreated, done.Status)
	assert.Equal(t, "a.txt", done.File.Name)
	assert.Equal(t, []string{"root"}, done.File.Parents)
	assert.NotEmpty(t, done.File.ID)
}

func TestDrive_EmptyFile(t *testing.T) {
	d := newEmulator(t)
	ctx := context.Background()

	loc, err := d.OpenSession(ctx, token, OpenRequest{Name: "empty", Size: 0})
	require.NoError(t, err)

	out, err := d.SendRange(ctx, token, loc, uploadproto.StatusQuery(0), nil)
	require.NoError(t, err)
	assert.IsType(t, uploadproto.Complete{}, out)
}

func TestDrive_OpenSessionErrors(t *testing.T) {
	d := newEmulator(t)

	_, err := d.OpenSession(context.Background(), "wrong", OpenRequest{Name: "a", Size: 1})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.Status)

	noLocation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer noLocation.Close()

	_, err = NewDrive(noLocation.URL).OpenSession(context.Background(), token, OpenRequest{Name: "a", Size: 1})
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Body, "Location")
}

func TestDrive_SendRangeDoesNotFollow308(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "bytes 0-2/10", r.Header.Get(uploadproto.HeaderContentRange))
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		w.Header().Set(uploadproto.HeaderRange, "bytes=0-2")
		w.Header().Set(uploadproto.HeaderLocation, "/elsewhere")
		w.WriteHeader(uploadproto.StatusResumeIncomplete)
	}))
	defer s.Close()

	out, err := NewDrive(s.URL).SendRange(context.Background(), token, s.URL+"/session", uploadproto.ContentRange{Start: 0, Length: 3, Total: 10}, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Continue{Received: 3}, out)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDrive_SendRangeFailures(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("backend unavailable"))
	}))
	defer s.Close()
	d := NewDrive(s.URL)

	out, err := d.SendRange(context.Background(), token, s.URL+"/session", uploadproto.ContentRange{Start: 0, Length: 1, Total: 1}, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Failed{Status: http.StatusServiceUnavailable, Body: "backend unavailable"}, out)

	_, err = d.SendRange(context.Background(), token, s.URL+"/session", uploadproto.ContentRange{Start: 0, Length: 2, Total: 2}, []byte("a"))
	assert.ErrorIs(t, err, models.ErrBadRange)
}

func TestDrive_ChunkTimeout(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer s.Close()
	defer close(release)

	d := NewDrive(s.URL, WithTimeouts(time.Second, 50*time.Millisecond))
	_, err := d.SendRange(context.Background(), token, s.URL+"/session", uploadproto.ContentRange{Start: 0, Length: 1, Total: 1}, []byte("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
