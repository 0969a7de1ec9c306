package acquire

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sabrina905990/apt/internal/logger"
	"github.com/sabrina905990/apt/pkg/config"
)

// URIAcquirer is implemented by each worker's business logic. URIAcquire
// is responsible for emitting its own Status/URIStart/URIDone/Fail
// messages through m as the fetch or verification progresses; Run itself
// only dispatches.
type URIAcquirer interface {
	URIAcquire(ctx context.Context, m *Method, item FetchItem) error
}

// Method is the protocol core shared by both worker mains: it reads
// RequestMessage blocks from stdin, applies Configuration messages to a
// Store, and dispatches URI Acquire messages to a URIAcquirer, writing
// every reply atomically to stdout.
type Method struct {
	reader *bufio.Reader
	writer io.Writer
	wmu    sync.Mutex

	Config *config.Store
	Log    *logger.Logger

	// Name identifies this method ("http" or "gpgv"). It is not part of
	// the Capabilities announcement, which carries Version only.
	Name    string
	Version string
}

// NewMethod builds a Method reading requests from r and writing replies
// to w. cfg is typically config.DefaultStore() with any local YAML
// defaults already applied.
func NewMethod(name, version string, r io.Reader, w io.Writer, cfg *config.Store, log *logger.Logger) *Method {
	return &Method{
		reader:  bufio.NewReader(r),
		writer:  w,
		Config:  cfg,
		Log:     log,
		Name:    name,
		Version: version,
	}
}

func (m *Method) write(msg *StatusMessage) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	_, err := io.WriteString(m.writer, msg.Render())
	if f, ok := m.writer.(interface{ Flush() error }); ok {
		if ferr := f.Flush(); err == nil {
			err = ferr
		}
	}
	return err
}

// Capabilities announces this method's identity and feature flags. Real
// apt parents expect it as the very first message on stdout.
func (m *Method) Capabilities(singleInstance, sendConfig, pipeline bool) error {
	msg := &StatusMessage{Code: 100, Description: "Capabilities"}
	msg.Set("Version", m.Version)
	msg.Set("Single-Instance", boolTag(singleInstance))
	msg.Set("Send-Config", boolTag(sendConfig))
	msg.Set("Pipeline", boolTag(pipeline))
	return m.write(msg)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Log101 emits an informational "101 Log" line. Named to avoid colliding
// with the Log *logger.Logger field.
func (m *Method) Log101(text string) error {
	msg := &StatusMessage{Code: 101, Description: "Log"}
	msg.Set("Message", text)
	return m.write(msg)
}

// Status emits a "102 Status" progress line.
func (m *Method) Status(uri, text string) error {
	msg := &StatusMessage{Code: 102, Description: "Status"}
	msg.Set("URI", uri)
	msg.Set("Message", text)
	return m.write(msg)
}

// URIStart emits "200 URI Start" once a 2xx response's headers have been
// parsed and the destination file is open for writing.
func (m *Method) URIStart(uri string, size int64, lastModified time.Time, resumePoint int64) error {
	msg := &StatusMessage{Code: 200, Description: "URI Start"}
	msg.Set("URI", uri)
	if size > 0 {
		msg.Set("Size", strconv.FormatInt(size, 10))
	}
	if !lastModified.IsZero() {
		msg.Set("Last-Modified", formatRFC1123(lastModified))
	}
	if resumePoint > 0 {
		msg.Set("Resume-Point", strconv.FormatInt(resumePoint, 10))
	}
	return m.write(msg)
}

// URIDone emits "201 URI Done" with the final FetchResult.
func (m *Method) URIDone(uri string, res FetchResult) error {
	msg := &StatusMessage{Code: 201, Description: "URI Done"}
	msg.Set("URI", uri)
	msg.Set("Filename", res.Filename)
	if res.Size > 0 {
		msg.Set("Size", strconv.FormatInt(res.Size, 10))
	}
	if !res.LastModified.IsZero() {
		msg.Set("Last-Modified", formatRFC1123(res.LastModified))
	}
	if res.ResumePoint > 0 {
		msg.Set("Resume-Point", strconv.FormatInt(res.ResumePoint, 10))
	}
	msg.Set("MD5-Hash", res.MD5Hash)
	if res.IMSHit {
		msg.Set("IMS-Hit", "true")
	}
	for _, line := range res.SignerLines {
		msg.Set("Signed-By", line)
	}
	return m.write(msg)
}

// Fail emits "400 URI Failure" for one URI.
func (m *Method) Fail(uri, message string) error {
	msg := &StatusMessage{Code: 400, Description: "URI Failure"}
	msg.Set("URI", uri)
	msg.Set("Message", message)
	return m.write(msg)
}

// GeneralFailure emits "401 General Failure", used for errors not tied to
// a specific URI (e.g. a malformed Configuration message).
func (m *Method) GeneralFailure(message string) error {
	msg := &StatusMessage{Code: 401, Description: "General Failure"}
	msg.Set("Message", message)
	return m.write(msg)
}

func formatRFC1123(t time.Time) string {
	return t.UTC().Format(time.RFC1123)
}

// Configuration applies every Config-Item field of a 601 Configuration
// message into m.Config and re-gates each component's debug logging from
// the resulting Debug::Acquire::http / Debug::Acquire::gpgv values.
// Malformed items are skipped and logged, never treated as a fatal error,
// mirroring pkgAcqMethod::Configuration.
func (m *Method) Configuration(msg *RequestMessage) error {
	var items []string
	for _, f := range msg.Fields {
		if strings.EqualFold(f.Tag, "Config-Item") {
			items = append(items, f.Value)
		}
	}
	skipped := m.Config.ApplyConfigItems(items)
	logger.SetDebug(logger.ComponentHTTP, m.Config.FindB("Debug::Acquire::http", false))
	logger.SetDebug(logger.ComponentGPGV, m.Config.FindB("Debug::Acquire::gpgv", false))
	for _, s := range skipped {
		if m.Log != nil {
			m.Log.Warn("skipping malformed Config-Item", logger.Fields{"item": s})
		}
	}
	return nil
}

// ParseFetchItem builds a FetchItem from a 600 URI Acquire message.
func ParseFetchItem(msg *RequestMessage) FetchItem {
	item := FetchItem{}
	if v, ok := LookupTag(msg, "URI"); ok {
		item.URI = v
	}
	if v, ok := LookupTag(msg, "Filename"); ok {
		item.Filename = v
	}
	if v, ok := LookupTag(msg, "Last-Modified"); ok {
		if t, err := time.Parse(time.RFC1123, v); err == nil {
			item.LastModified = t
		}
	}
	if v, ok := LookupTag(msg, "Signed-By"); ok {
		item.SignedBy = v
	}
	return item
}

// Run is the outer loop shared by both worker mains: read a message,
// dispatch Configuration or URI Acquire, and exit cleanly with a nil
// error when the parent closes stdin.
func (m *Method) Run(ctx context.Context, handler URIAcquirer) error {
	for {
		msg, err := ReadMessage(m.reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if m.Log != nil {
				m.Log.Error("malformed message from parent", logger.Fields{"error": err.Error()})
			}
			_ = m.GeneralFailure(fmt.Sprintf("malformed message: %v", err))
			continue
		}

		switch msg.Code {
		case 601:
			if err := m.Configuration(msg); err != nil {
				_ = m.GeneralFailure(err.Error())
			}
		case 600:
			item := ParseFetchItem(msg)
			if err := handler.URIAcquire(ctx, m, item); err != nil {
				if m.Log != nil {
					m.Log.Error("URI acquire failed", logger.Fields{"uri": item.URI, "error": err.Error()})
				}
			}
		default:
			if m.Log != nil {
				m.Log.Warn("unexpected message code from parent", logger.Fields{"code": msg.Code})
			}
		}
	}
}
