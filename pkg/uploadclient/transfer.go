// Package uploadclient реализует клиентскую половину возобновляемой загрузки: оркестратор Transfer,
// который режет файл на части и по одной шлёт их через прокси, и сигналы для интерфейса.
package uploadclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sir_venger/drive_relay/pkg/chunker"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

// DefaultChunkTimeout ограничивает одну отправку части.
const DefaultChunkTimeout = 5 * time.Minute

// Status: состояние загрузки.
type Status int

const (
	Idle Status = iota
	Initiating
	Uploading
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initiating:
		return "initiating"
	case Uploading:
		return "uploading"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal сообщает, что дальнейших шагов не будет.
func (s Status) Terminal() bool {
	return s == Complete || s == Failed
}

// Source описывает загружаемый файл с произвольным доступом к байтам и известным размером.
type Source struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.ReaderAt
}

// Snapshot: согласованный срез состояния загрузки.
type Snapshot struct {
	Status    Status
	Offset    int64
	Size      int64
	UploadURL string
	File      uploadproto.FileMetadata
	Err       error
}

// Transfer: одна попытка загрузки одного файла. Части уходят строго последовательно.
type Transfer struct {
	proxy        Proxy
	src          Source
	parentID     string
	chunkSize    int64
	chunkTimeout time.Duration
	newBackOff   func() backoff.BackOff
	observer     Observer
	log          *slog.Logger

	started atomic.Bool

	// step допускает не больше одного шага (и одного запроса к прокси) одновременно.
	step sync.Mutex
	bo   backoff.BackOff

	mu        sync.Mutex
	status    Status
	offset    int64
	uploadURL string
	file      uploadproto.FileMetadata
	err       error
}

type Option func(*Transfer)

// WithChunkSize задаёт размер части. По умолчанию chunker.DefaultChunkSize.
func WithChunkSize(n int64) Option {
	return func(t *Transfer) { t.chunkSize = n }
}

// WithParent задаёт папку назначения у провайдера.
func WithParent(id string) Option {
	return func(t *Transfer) { t.parentID = id }
}

// WithChunkTimeout ограничивает время одной отправки. Ноль снимает ограничение.
func WithChunkTimeout(d time.Duration) Option {
	return func(t *Transfer) { t.chunkTimeout = d }
}

// WithRetry включает повторы: после сетевой ошибки, 408, 429 или 5xx загрузка ждёт
// по политике backoff, спрашивает у прокси подтверждённый офсет и продолжает с него.
func WithRetry(newBackOff func() backoff.BackOff) Option {
	return func(t *Transfer) { t.newBackOff = newBackOff }
}

func WithObserver(o Observer) Option {
	return func(t *Transfer) { t.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transfer) { t.log = l }
}

// NewTransfer готовит загрузку src через proxy.
func NewTransfer(proxy Proxy, src Source, opts ...Option) (*Transfer, error) {
	t := &Transfer{
		proxy:        proxy,
		src:          src,
		chunkSize:    chunker.DefaultChunkSize,
		chunkTimeout: DefaultChunkTimeout,
		observer:     ObserverFuncs{},
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if proxy == nil {
		return nil, errors.New("uploadclient: nil proxy")
	}
	if err := chunker.Validate(src.Size, t.chunkSize); err != nil {
		return nil, fmt.Errorf("uploadclient: %w", err)
	}
	if src.Size > 0 && src.Reader == nil {
		return nil, errors.New("uploadclient: source has no reader")
	}
	if t.observer == nil {
		t.observer = ObserverFuncs{}
	}
	return t, nil
}

// Snapshot возвращает текущее состояние.
func (t *Transfer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Status:    t.status,
		Offset:    t.offset,
		Size:      t.src.Size,
		UploadURL: t.uploadURL,
		File:      t.file,
		Err:       t.err,
	}
}

// Start доводит загрузку до конца. Возвращает nil при Complete или ошибку, на которой
// загрузка упала. Повторный вызов возвращает ErrNotIdle.
func (t *Transfer) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrNotIdle
	}
	for {
		if t.Advance(ctx).Terminal() {
			return t.Snapshot().Err
		}
	}
}

// Advance делает ровно один шаг: открывает сессию или отправляет одну часть.
// В терминальном состоянии ничего не делает.
func (t *Transfer) Advance(ctx context.Context) Status {
	t.step.Lock()
	defer t.step.Unlock()

	switch t.Snapshot().Status {
	case Idle:
		t.started.Store(true)
		t.initiate(ctx)
	case Uploading:
		t.uploadNext(ctx)
	}
	return t.Snapshot().Status
}

func (t *Transfer) initiate(ctx context.Context) {
	t.setStatus(Initiating)
	t.observer.OnStart(t.src)

	uploadURL, err := t.proxy.Initiate(ctx, uploadproto.InitiateRequest{
		Name:     t.src.Name,
		Type:     t.src.MimeType,
		Size:     t.src.Size,
		ParentID: t.parentID,
	})
	if err != nil {
		var ie *InitiationError
		if !errors.As(err, &ie) {
			ie = &InitiationError{Message: err.Error(), Err: err}
		}
		t.fail(ie)
		return
	}

	t.mu.Lock()
	t.uploadURL = uploadURL
	t.offset = 0
	t.status = Uploading
	t.mu.Unlock()

	t.log.Debug("upload session opened", "name", t.src.Name, "size", t.src.Size)
	t.observer.OnProgress(Progress{Offset: 0, Size: t.src.Size})
}

// uploadNext отправляет часть, начинающуюся с подтверждённого офсета.
func (t *Transfer) uploadNext(ctx context.Context) {
	snap := t.Snapshot()
	r := chunker.At(snap.Offset, t.src.Size, t.chunkSize)

	out, err := t.send(ctx, snap.UploadURL, r)
	if err != nil {
		if t.retryable(ctx, 0, true) && t.resync(ctx, snap.UploadURL, err) {
			return
		}
		t.fail(&NetworkError{Range: r, Err: err})
		return
	}

	switch v := out.(type) {
	case uploadproto.Continue:
		if t.bo != nil {
			t.bo.Reset()
		}
		t.advanceAfter(r, v.Received)
	case uploadproto.Complete:
		t.complete(v.File)
	case uploadproto.Failed:
		if t.retryable(ctx, v.Status, false) && t.resync(ctx, snap.UploadURL, fmt.Errorf("status %d", v.Status)) {
			return
		}
		t.fail(&ChunkUploadError{Range: r, Status: v.Status, Body: v.Body})
	default:
		t.fail(&ChunkUploadError{Range: r, Body: fmt.Sprintf("unexpected outcome %T", out)})
	}
}

func (t *Transfer) send(ctx context.Context, uploadURL string, r chunker.Range) (uploadproto.Outcome, error) {
	if t.chunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.chunkTimeout)
		defer cancel()
	}

	var body io.Reader = bytes.NewReader(nil)
	if r.Length > 0 {
		body = io.NewSectionReader(t.src.Reader, r.Start, r.Length)
	}
	return t.proxy.SendChunk(ctx, uploadURL, uploadproto.NewContentRange(r, t.src.Size), body)
}

// advanceAfter сдвигает офсет после Continue. Офсет берётся из ответа провайдера,
// а если провайдер его не сообщил, из длины отправленного диапазона.
func (t *Transfer) advanceAfter(r chunker.Range, received int64) {
	next := r.End()
	if received >= 0 {
		if received <= r.Start || received > t.src.Size {
			t.fail(&ChunkUploadError{
				Range:  r,
				Status: uploadproto.StatusResumeIncomplete,
				Body:   fmt.Sprintf("provider acknowledged %d bytes, expected more than %d and at most %d", received, r.Start, t.src.Size),
			})
			return
		}
		next = received
	}

	if next >= t.src.Size {
		t.fail(&ChunkUploadError{
			Range:  r,
			Status: uploadproto.StatusResumeIncomplete,
			Body:   "all bytes sent but provider did not finalize the upload",
		})
		return
	}
	t.moveTo(next)
}

func (t *Transfer) retryable(ctx context.Context, status int, network bool) bool {
	if t.newBackOff == nil || ctx.Err() != nil {
		return false
	}
	return network ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// resync ждёт по политике повторов и сверяет офсет с провайдером.
// false означает, что попытки исчерпаны и загрузку надо завершить с исходной ошибкой.
func (t *Transfer) resync(ctx context.Context, uploadURL string, cause error) bool {
	if t.bo == nil {
		t.bo = t.newBackOff()
	}
	wait := t.bo.NextBackOff()
	if wait == backoff.Stop {
		return false
	}

	t.log.Info("retrying chunk", "name", t.src.Name, "offset", t.Snapshot().Offset, "wait", wait, "cause", cause)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
	}

	out, err := t.proxy.Status(ctx, uploadURL)
	if err != nil {
		t.log.Warn("upload status", "name", t.src.Name, "err", err)
		return true
	}

	switch v := out.(type) {
	case uploadproto.Complete:
		t.complete(v.File)
	case uploadproto.Continue:
		offset := t.Snapshot().Offset
		switch {
		case v.Received < 0 || v.Received == offset:
		case v.Received < offset || v.Received > t.src.Size:
			t.fail(&ChunkUploadError{
				Range:  chunker.At(offset, t.src.Size, t.chunkSize),
				Status: uploadproto.StatusResumeIncomplete,
				Body:   fmt.Sprintf("provider acknowledged %d bytes, local offset is %d", v.Received, offset),
			})
		default:
			t.moveTo(v.Received)
		}
	case uploadproto.Failed:
		t.log.Warn("upload status", "name", t.src.Name, "status", v.Status, "body", v.Body)
	}
	return true
}

func (t *Transfer) moveTo(offset int64) {
	t.mu.Lock()
	if offset > t.offset {
		t.offset = offset
	}
	p := Progress{Offset: t.offset, Size: t.src.Size}
	t.mu.Unlock()
	t.observer.OnProgress(p)
}

func (t *Transfer) complete(file uploadproto.FileMetadata) {
	t.mu.Lock()
	t.status = Complete
	t.offset = t.src.Size
	t.file = file
	t.mu.Unlock()

	t.log.Info("upload complete", "name", t.src.Name, "file_id", file.ID, "size", t.src.Size)
	t.observer.OnProgress(Progress{Offset: t.src.Size, Size: t.src.Size})
	t.observer.OnComplete(file)
}

func (t *Transfer) fail(err error) {
	t.mu.Lock()
	t.status = Failed
	t.err = err
	t.mu.Unlock()

	t.log.Warn("upload failed", "name", t.src.Name, "err", err)
	t.observer.OnError(err)
}

func (t *Transfer) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}
