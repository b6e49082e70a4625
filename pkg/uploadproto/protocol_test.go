package uploadproto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/drive_relay/pkg/chunker"
)

func TestContentRange_String(t *testing.T) {
	cr := NewContentRange(chunker.Range{Start: 2097152, Length: 2097152}, 5_000_000)
	assert.Equal(t, "bytes 2097152-4194303/5000000", cr.String())

	assert.Equal(t, "bytes */0", NewContentRange(chunker.Range{}, 0).String())
	assert.Equal(t, "bytes */42", StatusQuery(42).String())
}

func TestParseContentRange(t *testing.T) {
	cr, err := ParseContentRange("bytes 4194304-4999999/5000000")
	require.NoError(t, err)
	assert.Equal(t, ContentRange{Start: 4194304, Length: 805696, Total: 5_000_000}, cr)

	cr, err = ParseContentRange("bytes */0")
	require.NoError(t, err)
	assert.True(t, cr.Empty())
	assert.Zero(t, cr.Total)

	for _, bad := range []string{
		"",
		"bytes 0-9",
		"items 0-9/10",
		"bytes 5-4/10",
		"bytes 0-10/10",
		"bytes a-b/10",
		"bytes 0-1/-3",
	} {
		_, err := ParseContentRange(bad)
		assert.ErrorIs(t, err, ErrMalformedRange, bad)
	}
}

func TestContentRange_RoundTrip(t *testing.T) {
	for r := range chunker.Ranges(10, 4) {
		cr := NewContentRange(r, 10)
		parsed, err := ParseContentRange(cr.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed.Range())
	}
}

func TestParseReceived(t *testing.T) {
	n, err := ParseReceived("bytes=0-2097151")
	require.NoError(t, err)
	assert.Equal(t, int64(2097152), n)

	n, err = ParseReceived("")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)

	_, err = ParseReceived("bytes=10-20")
	assert.ErrorIs(t, err, ErrMalformedRange)

	assert.Equal(t, "bytes=0-99", FormatReceived(100))
	assert.Empty(t, FormatReceived(0))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Continue{Received: 10}, Classify(StatusResumeIncomplete, "bytes=0-9", nil))
	assert.Equal(t, Continue{Received: -1}, Classify(StatusResumeIncomplete, "", nil))

	out := Classify(http.StatusCreated, "", []byte(`{"id":"f1","name":"a.bin","mimeType":"application/octet-stream","size":"12"}`))
	require.IsType(t, Complete{}, out)
	assert.Equal(t, "f1", out.(Complete).File.ID)
	assert.Equal(t, int64(12), out.(Complete).File.Size)

	assert.IsType(t, Complete{}, Classify(http.StatusNoContent, "", nil))

	failed := Classify(http.StatusInternalServerError, "", []byte("boom"))
	assert.Equal(t, Failed{Status: http.StatusInternalServerError, Body: "boom"}, failed)
}

func TestResponseRoundTrip(t *testing.T) {
	outcomes := []Outcome{
		Continue{Received: 2048},
		Continue{Received: -1},
		Complete{Status: http.StatusCreated, File: FileMetadata{ID: "x", Name: "n"}},
		Failed{Status: http.StatusServiceUnavailable, Body: "later"},
	}
	for _, o := range outcomes {
		code, resp := ToResponse(o)
		assert.Equal(t, o, FromResponse(code, resp, nil))
	}
}

func TestToResponse_FailedBelow400MapsToBadGateway(t *testing.T) {
	code, resp := ToResponse(Failed{Status: http.StatusFound, Body: "moved"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, http.StatusFound, resp.Status)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc", Excerpt([]byte("abc"), 10))
	assert.Equal(t, "ab...", Excerpt([]byte("abc"), 2))
}
