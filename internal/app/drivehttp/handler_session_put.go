package drivehttp

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

var errGap = errors.New("range starts beyond received bytes")

// putRange принимает очередной диапазон байт сессии или отвечает на запрос статуса.
func (a *Server) putRange(w http.ResponseWriter, r *http.Request) {
	uploadID := r.URL.Query().Get("upload_id")
	if _, err := uuid.Parse(uploadID); err != nil {
		writeDriveError(w, http.StatusNotFound, "unknown upload session")
		return
	}

	cr, err := uploadproto.ParseContentRange(r.Header.Get(uploadproto.HeaderContentRange))
	if err != nil {
		writeDriveError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.ContentLength >= 0 && r.ContentLength != cr.Length {
		writeDriveError(w, http.StatusBadRequest, fmt.Sprintf("content length %d does not match range %s", r.ContentLength, cr))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	meta, err := readMeta(a.metaPath(uploadID))
	if err != nil {
		writeDriveError(w, http.StatusNotFound, "unknown upload session")
		return
	}

	// Повторная отправка в завершённую сессию возвращает уже созданный файл.
	if meta.completed() {
		writeJSON(w, http.StatusOK, meta.file())
		return
	}
	if cr.Total != meta.Size {
		writeDriveError(w, http.StatusBadRequest, fmt.Sprintf("total %d does not match session size %d", cr.Total, meta.Size))
		return
	}

	if !cr.Empty() {
		if err := a.appendRange(meta, cr, r.Body); err != nil {
			// Частично принятые байты остаются: клиент узнает офсет запросом статуса.
			_ = writeMeta(a.metaPath(uploadID), meta)
			code := http.StatusInternalServerError
			if errors.Is(err, errGap) {
				code = http.StatusBadRequest
			}
			writeDriveError(w, code, err.Error())
			return
		}
	}

	if meta.Received == meta.Size {
		if err := a.finalize(meta); err != nil {
			writeDriveError(w, http.StatusInternalServerError, err.Error())
			return
		}
		a.log.Debug("upload finalized", "upload_id", uploadID, "file_id", meta.FileID, "size", meta.Size)
		writeJSON(w, http.StatusCreated, meta.file())
		return
	}

	if err := writeMeta(a.metaPath(uploadID), meta); err != nil {
		writeDriveError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if v := uploadproto.FormatReceived(meta.Received); v != "" {
		w.Header().Set(uploadproto.HeaderRange, v)
	}
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(uploadproto.StatusResumeIncomplete)
}

// appendRange дописывает байты диапазона после уже принятых, пропуская перекрытие.
func (a *Server) appendRange(meta *sessionMeta, cr uploadproto.ContentRange, body io.Reader) error {
	if cr.Start > meta.Received {
		return fmt.Errorf("%w: start %d, received %d", errGap, cr.Start, meta.Received)
	}

	f, err := os.OpenFile(a.dataPath(meta.UploadID), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// Хвост от оборванной записи отбрасываем.
	if err := f.Truncate(meta.Received); err != nil {
		return err
	}
	if _, err := f.Seek(meta.Received, io.SeekStart); err != nil {
		return err
	}

	skip := min(meta.Received-cr.Start, cr.Length)
	if _, err := io.CopyN(io.Discard, body, skip); err != nil {
		return fmt.Errorf("read overlap: %w", err)
	}

	n, err := io.CopyN(f, body, cr.Length-skip)
	meta.Received += n
	if err != nil {
		return fmt.Errorf("read range %s: %w", cr, err)
	}

	return nil
}

// finalize считает контрольную сумму и публикует файл.
func (a *Server) finalize(meta *sessionMeta) error {
	f, err := os.Open(a.dataPath(meta.UploadID))
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	meta.Sha256 = hex.EncodeToString(h.Sum(nil))
	meta.FileID = uuid.NewString()

	if err := os.MkdirAll(a.fileIndexPath(""), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(a.fileIndexPath(meta.FileID), []byte(meta.UploadID), 0o644); err != nil {
		return err
	}

	return writeMeta(a.metaPath(meta.UploadID), meta)
}
