package httpfetch

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabrina905990/apt/pkg/circularbuf"
	"github.com/sabrina905990/apt/pkg/config"
	"github.com/sabrina905990/apt/pkg/errors"
)

// Encoding identifies how the response body is framed.
type Encoding int

const (
	EncodingCloses Encoding = iota
	EncodingStream
	EncodingChunked
)

// Phase is ServerState's high-level position: parsing headers, or
// transferring the body.
type Phase int

const (
	PhaseHeader Phase = iota
	PhaseData
)

const maxHeaderLine = 65536

// ServerState is one active origin connection: DNS-resolved socket,
// inbound/outbound ring buffers, and the parsed response fields needed to
// drive the body transfer. One is created per host and reused across
// consecutive requests to that host.
type ServerState struct {
	Host string
	Port int

	Proxy string

	In  *circularbuf.Buffer
	Out *circularbuf.Buffer

	fd int

	Major, Minor int
	Result       int
	Reason       string

	Size     int64
	StartPos int64
	Date     time.Time

	HaveContent bool
	Encoding    Encoding
	Phase       Phase

	dialer Dialer
	config *config.Store
}

// NewServerState builds a ServerState for host:port, with 64 KiB inbound
// and 1 KiB outbound buffers.
func NewServerState(host string, port int, dialer Dialer, cfg *config.Store) *ServerState {
	return &ServerState{
		Host:   host,
		Port:   port,
		In:     circularbuf.New(64*1024, true),
		Out:    circularbuf.New(1024, false),
		fd:     -1,
		dialer: dialer,
		config: cfg,
	}
}

// FD returns the current socket descriptor, or -1 when closed.
func (s *ServerState) FD() int { return s.fd }

// Matches reports whether this connection already targets host:port, so
// the worker loop can decide whether to reuse it or create a fresh one.
func (s *ServerState) Matches(host string, port int) bool {
	return s.Host == host && s.Port == port
}

// Open connects to the server (or its proxy), resolving through the
// one-entry DNS cache and leaving the socket non-blocking on success. A
// no-op if already connected.
func (s *ServerState) Open() error {
	if s.fd != -1 {
		return nil
	}
	s.Close()
	s.In.Reset()
	s.Out.Reset()

	s.Proxy = s.config.Proxy(s.Host)

	host := s.Host
	port := s.Port
	if port == 0 {
		port = 80
	}
	if s.Proxy != "" {
		pu, err := url.Parse(s.Proxy)
		if err != nil {
			return errors.Wrapf(errors.ErrConnectFailed, "bad proxy URL %q: %v", s.Proxy, err)
		}
		host = pu.Hostname()
		if p := pu.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		} else {
			port = 80
		}
	}

	fd, err := s.dialer.Dial(host, port)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd) //nolint:errcheck
		return errors.Wrap(err, "could not set socket non-blocking")
	}
	s.fd = fd
	return nil
}

// Close closes the socket, if any, and never fails.
func (s *ServerState) Close() {
	if s.fd != -1 {
		unix.Close(s.fd) //nolint:errcheck
		s.fd = -1
	}
}

// resetHeaderState clears the per-response fields RunHeaders populates,
// called at the start of every header parse.
func (s *ServerState) resetHeaderState() {
	s.Phase = PhaseHeader
	s.Major, s.Minor, s.Result = 0, 0, 0
	s.Reason = ""
	s.Size = 0
	s.StartPos = 0
	s.Encoding = EncodingCloses
	s.HaveContent = false
	s.Date = time.Now()
}

// HeaderLine processes one header line. An empty line is the terminator
// and is accepted as-is; anything else is classified as a status line or
// a known/ignored header field.
func (s *ServerState) HeaderLine(line string) error {
	if line == "" {
		return nil
	}
	if len(line) >= maxHeaderLine {
		return errors.Wrapf(errors.ErrHeaderTooLong, "got a single header line over %d chars", maxHeaderLine)
	}

	if len(line) >= 4 && strings.EqualFold(line[:4], "HTTP") {
		return s.parseStatusLine(line)
	}

	tag, val, ok := strings.Cut(line, ":")
	if !ok {
		return errors.Wrapf(errors.ErrHeaderParse, "bad header line: %q", line)
	}
	tag = strings.TrimSpace(tag)
	val = strings.TrimSpace(val)

	switch strings.ToLower(tag) {
	case "content-length":
		// Ignored when StartPos != 0: the size was already derived from
		// a Content-Range header.
		if s.StartPos == 0 {
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return errors.Wrapf(errors.ErrHeaderParse, "bad Content-Length %q", val)
			}
			s.Size = n
			if s.Encoding == EncodingCloses {
				s.Encoding = EncodingStream
			}
			s.HaveContent = true
		}
	case "content-type":
		s.HaveContent = true
	case "content-range":
		return s.parseContentRange(val)
	case "transfer-encoding":
		if strings.EqualFold(val, "chunked") {
			s.Encoding = EncodingChunked
			s.HaveContent = true
		}
	case "last-modified":
		t, err := time.Parse(time.RFC1123, val)
		if err != nil {
			return errors.Wrapf(errors.ErrHeaderParse, "bad Last-Modified %q: %v", val, err)
		}
		s.Date = t
	}
	return nil
}

func (s *ServerState) parseStatusLine(line string) error {
	rest := line[4:]
	if strings.HasPrefix(rest, "/") {
		fields := strings.SplitN(strings.TrimSpace(rest[1:]), " ", 3)
		if len(fields) < 2 {
			return errors.Wrap(errors.ErrHeaderParse, "the http server sent an invalid reply header")
		}
		verParts := strings.SplitN(fields[0], ".", 2)
		major, err := strconv.Atoi(verParts[0])
		if err != nil {
			return errors.Wrap(errors.ErrHeaderParse, "the http server sent an invalid reply header")
		}
		minor := 0
		if len(verParts) > 1 {
			minor, err = strconv.Atoi(verParts[1])
			if err != nil {
				return errors.Wrap(errors.ErrHeaderParse, "the http server sent an invalid reply header")
			}
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return errors.Wrap(errors.ErrHeaderParse, "the http server sent an invalid reply header")
		}
		s.Major, s.Minor, s.Result = major, minor, code
		if len(fields) == 3 {
			s.Reason = fields[2]
		}
		return nil
	}

	// Evil servers return no version: "HTTP 200 OK" forces version 0.9.
	fields := strings.SplitN(strings.TrimSpace(rest), " ", 2)
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return errors.Wrap(errors.ErrHeaderParse, "the http server sent an invalid reply header")
	}
	s.Major, s.Minor = 0, 9
	s.Result = code
	if len(fields) == 2 {
		s.Reason = fields[1]
	}
	return nil
}

func (s *ServerState) parseContentRange(val string) error {
	val = strings.TrimSpace(val)
	val = strings.TrimPrefix(val, "bytes ")
	rangePart, totalPart, ok := strings.Cut(val, "/")
	if !ok {
		return errors.Wrap(errors.ErrHeaderParse, "bad Content-Range")
	}
	startStr, _, ok := strings.Cut(rangePart, "-")
	if !ok {
		return errors.Wrap(errors.ErrHeaderParse, "bad Content-Range")
	}
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrHeaderParse, "bad Content-Range")
	}
	total, err := strconv.ParseInt(strings.TrimSpace(totalPart), 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrHeaderParse, "bad Content-Range")
	}
	if start > total {
		return errors.Wrap(errors.ErrBrokenRange, "broken range support")
	}
	s.StartPos = start
	s.Size = total
	return nil
}
