package uploadproto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sir_venger/drive_relay/pkg/chunker"
)

// ErrMalformedRange возвращается для заголовков Content-Range/Range, которые не удалось разобрать.
var ErrMalformedRange = errors.New("malformed byte range")

// ContentRange: значение заголовка Content-Range для одной отправки.
// Length == 0 кодируется как "bytes */Total" (финализация пустого остатка или запрос статуса).
type ContentRange struct {
	Start  int64
	Length int64
	Total  int64
}

// NewContentRange строит заголовок для диапазона чанкера.
func NewContentRange(r chunker.Range, total int64) ContentRange {
	return ContentRange{Start: r.Start, Length: r.Length, Total: total}
}

// StatusQuery: пустой Content-Range, которым у провайдера запрашивают принятый офсет.
func StatusQuery(total int64) ContentRange {
	return ContentRange{Start: 0, Length: 0, Total: total}
}

// Range возвращает диапазон чанкера.
func (c ContentRange) Range() chunker.Range {
	return chunker.Range{Start: c.Start, Length: c.Length}
}

// Empty сообщает, что байт в запросе нет.
func (c ContentRange) Empty() bool {
	return c.Length == 0
}

func (c ContentRange) String() string {
	if c.Length == 0 {
		return fmt.Sprintf("bytes */%d", c.Total)
	}
	return fmt.Sprintf("bytes %d-%d/%d", c.Start, c.Start+c.Length-1, c.Total)
}

// ParseContentRange разбирает "bytes {start}-{end}/{total}" или "bytes */{total}".
func ParseContentRange(v string) (ContentRange, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !ok {
		return ContentRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}

	span, totalStr, ok := strings.Cut(rest, "/")
	if !ok {
		return ContentRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}
	total, err := strconv.ParseInt(totalStr, 10, 64)
	if err != nil || total < 0 {
		return ContentRange{}, fmt.Errorf("%w: bad total in %q", ErrMalformedRange, v)
	}

	if span == "*" {
		return ContentRange{Start: 0, Length: 0, Total: total}, nil
	}

	startStr, endStr, ok := strings.Cut(span, "-")
	if !ok {
		return ContentRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}
	start, err1 := strconv.ParseInt(startStr, 10, 64)
	end, err2 := strconv.ParseInt(endStr, 10, 64)
	if err1 != nil || err2 != nil || start < 0 || end < start || end >= total {
		return ContentRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}

	return ContentRange{Start: start, Length: end - start + 1, Total: total}, nil
}

// FormatReceived строит заголовок Range провайдера для принятых received байт.
// При received == 0 заголовок не выставляется, поэтому возвращается пустая строка.
func FormatReceived(received int64) string {
	if received <= 0 {
		return ""
	}
	return fmt.Sprintf("bytes=0-%d", received-1)
}

// ParseReceived разбирает заголовок Range провайдера "bytes=0-N" и возвращает N+1.
// Пустой заголовок означает, что провайдер не сообщил офсет: возвращается -1.
func ParseReceived(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return -1, nil
	}
	span, ok := strings.CutPrefix(v, "bytes=")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}
	startStr, endStr, ok := strings.Cut(span, "-")
	if !ok || startStr != "0" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedRange, v)
	}
	return end + 1, nil
}
