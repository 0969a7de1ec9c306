package acquire

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sabrina905990/apt/pkg/errors"
)

// Field is one "Tag: Value" line of a message.
type Field struct {
	Tag   string
	Value string
}

// RequestMessage is one parsed inbound block: a numeric code, its
// description, and an ordered set of fields. Continuation lines are not
// supported, matching the real acquire-method protocol.
type RequestMessage struct {
	Code        int
	Description string
	Fields      []Field
}

// LookupTag returns the value of the first field whose tag matches name,
// case-insensitively.
func LookupTag(msg *RequestMessage, name string) (string, bool) {
	for _, f := range msg.Fields {
		if strings.EqualFold(f.Tag, name) {
			return f.Value, true
		}
	}
	return "", false
}

// ReadMessage reads one block of lines from r: a leading "NNN Description"
// line followed by zero or more "Tag: Value" lines, terminated by a blank
// line. It returns io.EOF, unwrapped, when r is exhausted before any line
// of a new message is read, so callers can distinguish a clean shutdown
// from a message truncated mid-block.
func ReadMessage(r *bufio.Reader) (*RequestMessage, error) {
	first, err := readLine(r)
	if err != nil {
		return nil, err
	}

	code, desc, err := splitStatusLine(first)
	if err != nil {
		return nil, err
	}
	msg := &RequestMessage{Code: code, Description: desc}

	for {
		line, err := readLine(r)
		if err != nil {
			if err == io.EOF {
				return nil, errors.Wrap(io.ErrUnexpectedEOF, "truncated acquire-method message")
			}
			return nil, err
		}
		if line == "" {
			return msg, nil
		}
		tag, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.Wrapf(errors.ErrMalformedMessage, "field without colon: %q", line)
		}
		msg.Fields = append(msg.Fields, Field{
			Tag:   strings.TrimSpace(tag),
			Value: strings.TrimSpace(value),
		})
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", io.EOF
		}
		if err != io.EOF {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func splitStatusLine(line string) (int, string, error) {
	parts := strings.SplitN(line, " ", 2)
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", errors.Wrapf(errors.ErrMalformedMessage, "bad status line %q", line)
	}
	desc := ""
	if len(parts) == 2 {
		desc = parts[1]
	}
	return code, desc, nil
}

// StatusMessage is one outbound block: a numeric code, its description,
// and an ordered set of fields to be rendered as "Tag: Value" lines.
type StatusMessage struct {
	Code        int
	Description string
	Fields      []Field
}

// Set appends a field, skipping it entirely when value is empty so that
// optional fields (MD5-Hash, Last-Modified, and the like) are omitted
// rather than emitted blank.
func (m *StatusMessage) Set(tag, value string) *StatusMessage {
	if value == "" {
		return m
	}
	m.Fields = append(m.Fields, Field{Tag: tag, Value: value})
	return m
}

// Render serializes the message as the wire format: the status line,
// each field on its own line, and a terminating blank line.
func (m *StatusMessage) Render() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(m.Code))
	if m.Description != "" {
		b.WriteByte(' ')
		b.WriteString(m.Description)
	}
	b.WriteString("\n")
	for _, f := range m.Fields {
		b.WriteString(f.Tag)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
