package acquire

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessageParsesFieldsAndCode(t *testing.T) {
	raw := "600 URI Acquire\n" +
		"URI: http://deb.example.org/pool/a.deb\n" +
		"Filename: /tmp/a.deb\n" +
		"\n"
	msg, err := ReadMessage(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, 600, msg.Code)
	assert.Equal(t, "URI Acquire", msg.Description)

	v, ok := LookupTag(msg, "uri")
	assert.True(t, ok)
	assert.Equal(t, "http://deb.example.org/pool/a.deb", v)

	_, ok = LookupTag(msg, "Nonexistent")
	assert.False(t, ok)
}

func TestReadMessageReturnsEOFOnCleanClose(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(strings.NewReader("")))
	assert.Equal(t, io.EOF, err)
}

func TestReadMessageErrorsOnTruncatedBlock(t *testing.T) {
	raw := "601 Configuration\nConfig-Item: Debug::Acquire::http=true"
	_, err := ReadMessage(bufio.NewReader(strings.NewReader(raw)))
	assert.Error(t, err)
}

func TestReadMessageErrorsOnFieldWithoutColon(t *testing.T) {
	raw := "600 URI Acquire\nnotafield\n\n"
	_, err := ReadMessage(bufio.NewReader(strings.NewReader(raw)))
	assert.Error(t, err)
}

func TestStatusMessageOmitsEmptyFields(t *testing.T) {
	msg := &StatusMessage{Code: 201, Description: "URI Done"}
	msg.Set("URI", "http://x/y").Set("MD5-Hash", "").Set("Size", "5")

	out := msg.Render()
	assert.Contains(t, out, "201 URI Done\n")
	assert.Contains(t, out, "URI: http://x/y\n")
	assert.Contains(t, out, "Size: 5\n")
	assert.NotContains(t, out, "MD5-Hash")
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestReadMessageThenAnotherOnSameReader(t *testing.T) {
	raw := "600 URI Acquire\nURI: a\n\n600 URI Acquire\nURI: b\n\n"
	r := bufio.NewReader(strings.NewReader(raw))

	first, err := ReadMessage(r)
	require.NoError(t, err)
	v, _ := LookupTag(first, "URI")
	assert.Equal(t, "a", v)

	second, err := ReadMessage(r)
	require.NoError(t, err)
	v, _ = LookupTag(second, "URI")
	assert.Equal(t, "b", v)

	_, err = ReadMessage(r)
	assert.Equal(t, io.EOF, err)
}
