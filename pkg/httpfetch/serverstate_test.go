package httpfetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabrina905990/apt/pkg/config"
)

func newTestState() *ServerState {
	return NewServerState("example.invalid", 80, nil, config.DefaultStore())
}

func TestHeaderLineParsesStatusLine(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	require.NoError(t, s.HeaderLine("HTTP/1.1 200 OK"))
	assert.Equal(t, 1, s.Major)
	assert.Equal(t, 1, s.Minor)
	assert.Equal(t, 200, s.Result)
	assert.Equal(t, "OK", s.Reason)
}

func TestHeaderLineAcceptsDegenerateHTTP09StatusLine(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	require.NoError(t, s.HeaderLine("HTTP 200 OK"))
	assert.Equal(t, 0, s.Major)
	assert.Equal(t, 9, s.Minor)
	assert.Equal(t, 200, s.Result)
}

func TestHeaderLineContentLengthSetsStreamEncoding(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	require.NoError(t, s.HeaderLine("Content-Length: 1024"))
	assert.Equal(t, int64(1024), s.Size)
	assert.Equal(t, EncodingStream, s.Encoding)
	assert.True(t, s.HaveContent)
}

func TestHeaderLineContentLengthIgnoredAfterContentRange(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	require.NoError(t, s.HeaderLine("Content-Range: bytes 100-999/1000"))
	require.NoError(t, s.HeaderLine("Content-Length: 900"))

	assert.Equal(t, int64(1000), s.Size)
	assert.Equal(t, int64(100), s.StartPos)
}

func TestHeaderLineChunkedTransferEncoding(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	require.NoError(t, s.HeaderLine("Transfer-Encoding: chunked"))
	assert.Equal(t, EncodingChunked, s.Encoding)
	assert.True(t, s.HaveContent)
}

func TestHeaderLineLastModifiedParsesRFC1123(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	require.NoError(t, s.HeaderLine("Last-Modified: Mon, 02 Jan 2006 15:04:05 GMT"))
	assert.Equal(t, 2006, s.Date.Year())
}

func TestHeaderLineRejectsLineWithoutColon(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	err := s.HeaderLine("not-a-valid-header-line")
	assert.Error(t, err)
}

func TestHeaderLineRejectsOverlongLine(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	huge := make([]byte, maxHeaderLine)
	for i := range huge {
		huge[i] = 'x'
	}
	err := s.HeaderLine(string(huge))
	assert.Error(t, err)
}

func TestParseContentRangeRejectsStartPastTotal(t *testing.T) {
	s := newTestState()
	s.resetHeaderState()

	err := s.HeaderLine("Content-Range: bytes 2000-2999/1000")
	assert.Error(t, err)
}

func TestMatchesComparesHostAndPort(t *testing.T) {
	s := newTestState()
	assert.True(t, s.Matches("example.invalid", 80))
	assert.False(t, s.Matches("example.invalid", 443))
	assert.False(t, s.Matches("other.invalid", 80))
}

func TestResetHeaderStateClearsPriorResponse(t *testing.T) {
	s := newTestState()
	s.Result = 404
	s.Size = 50
	s.Encoding = EncodingChunked
	s.HaveContent = true

	s.resetHeaderState()

	assert.Equal(t, 0, s.Result)
	assert.Equal(t, int64(0), s.Size)
	assert.Equal(t, EncodingCloses, s.Encoding)
	assert.False(t, s.HaveContent)
	assert.WithinDuration(t, time.Now(), s.Date, time.Second)
}
