package uploadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

func newProxy(t *testing.T, h http.HandlerFunc) *HTTPProxy {
	t.Helper()
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return NewHTTPProxy(s.URL+"/", WithUser("X-Auth-User", "alice"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPProxy_Initiate(t *testing.T) {
	p := newProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadproto.UploadPath, r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get("X-Auth-User"))

		var req uploadproto.InitiateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uploadproto.InitiateRequest{Action: "initiate", Name: "a.pdf", Type: "application/pdf", Size: 42, ParentID: "folder"}, req)

		writeJSON(w, http.StatusOK, uploadproto.InitiateResponse{UploadURL: "handle-1"})
	})

	handle, err := p.Initiate(context.Background(), uploadproto.InitiateRequest{Name: "a.pdf", Type: "application/pdf", Size: 42, ParentID: "folder"})
	require.NoError(t, err)
	assert.Equal(t, "handle-1", handle)
}

func TestHTTPProxy_InitiateErrors(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		body    any
		auth    bool
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, uploadproto.ErrorResponse{Message: "no valid provider credential for user"}, true, "no valid provider credential"},
		{"provider failure", http.StatusBadGateway, uploadproto.ErrorResponse{Message: "provider open session failed: status 403: quota"}, false, "quota"},
		{"missing handle", http.StatusOK, map[string]string{}, false, "no uploadUrl"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProxy(t, func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, tc.code, tc.body) })

			_, err := p.Initiate(context.Background(), uploadproto.InitiateRequest{Name: "a", Size: 1})
			var ie *InitiationError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tc.code, ie.Status)
			assert.Contains(t, ie.Error(), tc.message)
			assert.Equal(t, tc.auth, errors.Is(err, ErrAuth))
		})
	}
}

func TestHTTPProxy_SendChunk(t *testing.T) {
	var replies []func(w http.ResponseWriter)
	var gotBodies [][]byte

	p := newProxy(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "alice", r.Header.Get("X-Auth-User"))
		assert.Equal(t, uploadproto.ActionUploadChunk, r.FormValue(uploadproto.FieldAction))
		assert.Equal(t, "handle-1", r.FormValue(uploadproto.FieldUploadURL))

		f, _, err := r.FormFile(uploadproto.FieldChunk)
		require.NoError(t, err)
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		gotBodies = append(gotBodies, b)

		cr, err := uploadproto.ParseContentRange(r.FormValue(uploadproto.FieldContentRange))
		require.NoError(t, err)
		assert.Equal(t, cr.Length, int64(len(b)))

		reply := replies[0]
		replies = replies[1:]
		reply(w)
	})

	received := int64(5)
	replies = []func(w http.ResponseWriter){
		func(w http.ResponseWriter) {
			writeJSON(w, http.StatusOK, uploadproto.ChunkResponse{Status: uploadproto.StatusResumeIncomplete, Received: &received})
		},
		func(w http.ResponseWriter) {
			writeJSON(w, http.StatusOK, uploadproto.ChunkResponse{Status: http.StatusCreated, Success: true, File: &uploadproto.FileMetadata{ID: "f", Name: "a", Size: 8}})
		},
		func(w http.ResponseWriter) {
			writeJSON(w, http.StatusInternalServerError, uploadproto.ChunkResponse{Status: http.StatusInternalServerError, Message: "boom"})
		},
	}

	ctx := context.Background()
	out, err := p.SendChunk(ctx, "handle-1", uploadproto.ContentRange{Start: 0, Length: 5, Total: 8}, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Continue{Received: 5}, out)

	out, err = p.SendChunk(ctx, "handle-1", uploadproto.ContentRange{Start: 5, Length: 3, Total: 8}, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Complete{Status: http.StatusCreated, File: uploadproto.FileMetadata{ID: "f", Name: "a", Size: 8}}, out)

	out, err = p.SendChunk(ctx, "handle-1", uploadproto.StatusQuery(8), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Failed{Status: http.StatusInternalServerError, Body: "boom"}, out)

	assert.Equal(t, [][]byte{[]byte("hello"), []byte("abc"), {}}, gotBodies)
}

func TestHTTPProxy_Status(t *testing.T) {
	p := newProxy(t, func(w http.ResponseWriter, r *http.Request) {
		var req uploadproto.StatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uploadproto.StatusRequest{Action: uploadproto.ActionStatus, UploadURL: "handle-1"}, req)
		writeJSON(w, http.StatusNotFound, uploadproto.ErrorResponse{Message: "upload session not found"})
	})

	out, err := p.Status(context.Background(), "handle-1")
	require.NoError(t, err)
	assert.Equal(t, uploadproto.Failed{Status: http.StatusNotFound, Body: "upload session not found"}, out)
}

func TestHTTPProxy_TransportError(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	s.Close()

	_, err := NewHTTPProxy(s.URL).SendChunk(context.Background(), "h", uploadproto.ContentRange{Start: 0, Length: 1, Total: 1}, bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}
