package relayhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/internal/usecase/relaysvc"
	"github.com/sir_venger/drive_relay/pkg/httperrors"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const (
	maxJSONBody = 64 << 10
	// multipartOverhead: запас на заголовки частей и текстовые поля формы.
	multipartOverhead = 1 << 20
)

// uploadRequest: JSON-тело действий initiate и status.
type uploadRequest struct {
	Action    string `json:"action"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      *int64 `json:"size"`
	ParentID  string `json:"parentId"`
	UploadURL string `json:"uploadUrl"`
}

// postUpload разводит запрос по типу тела: JSON для initiate/status, multipart для частей.
func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		httperrors.WriteMessage(w, http.StatusUnsupportedMediaType, "missing or invalid Content-Type")
		return
	}

	switch mediaType {
	case "application/json":
		s.postUploadJSON(w, r)
	case "multipart/form-data":
		s.postUploadChunk(w, r)
	default:
		httperrors.WriteMessage(w, http.StatusUnsupportedMediaType, "unsupported Content-Type "+mediaType)
	}
}

func (s *Server) postUploadJSON(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		httperrors.WriteMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	user := userFrom(r.Context())

	switch req.Action {
	case uploadproto.ActionInitiate:
		if req.Size == nil {
			httperrors.WriteMessage(w, http.StatusBadRequest, "size is required")
			return
		}
		handle, err := s.Relay.Initiate(r.Context(), user, relaysvc.InitiateRequest{
			Name:     req.Name,
			MimeType: req.Type,
			Size:     *req.Size,
			ParentID: req.ParentID,
		})
		if err != nil {
			httperrors.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadproto.InitiateResponse{UploadURL: handle})

	case uploadproto.ActionStatus:
		out, err := s.Relay.Status(r.Context(), user, req.UploadURL)
		writeOutcome(w, out, err)

	case uploadproto.ActionUploadChunk:
		httperrors.WriteMessage(w, http.StatusBadRequest, "upload_chunk requires multipart/form-data")

	default:
		httperrors.WriteMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

// postUploadChunk буферизует одну часть (не больше max_chunk_bytes) и пересылает её провайдеру.
func (s *Server) postUploadChunk(w http.ResponseWriter, r *http.Request) {
	limit := s.Cfg.MaxChunkBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.Write(w, models.ErrChunkTooLarge)
			return
		}
		httperrors.WriteMessage(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	if action := r.FormValue(uploadproto.FieldAction); action != uploadproto.ActionUploadChunk {
		httperrors.WriteMessage(w, http.StatusBadRequest, fmt.Sprintf("unexpected action %q", action))
		return
	}

	cr, err := uploadproto.ParseContentRange(r.FormValue(uploadproto.FieldContentRange))
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	body, err := readChunk(r, limit)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	out, err := s.Relay.SendChunk(r.Context(), userFrom(r.Context()), r.FormValue(uploadproto.FieldUploadURL), cr, body)
	writeOutcome(w, out, err)
}

// readChunk достаёт байты части из файлового поля chunk или из одноимённого значения.
// Отсутствующее поле означает пустую часть.
func readChunk(r *http.Request, limit int64) ([]byte, error) {
	f, _, err := r.FormFile(uploadproto.FieldChunk)
	switch {
	case err == nil:
		defer f.Close()
		b, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		if int64(len(b)) > limit {
			return nil, models.ErrChunkTooLarge
		}
		return b, nil
	case errors.Is(err, http.ErrMissingFile):
		if vs := r.MultipartForm.Value[uploadproto.FieldChunk]; len(vs) > 0 {
			return []byte(vs[0]), nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}
}

func writeOutcome(w http.ResponseWriter, out uploadproto.Outcome, err error) {
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	code, resp := uploadproto.ToResponse(out)
	writeJSON(w, code, resp)
}
