package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sabrina905990/apt/pkg/acquire"
	"github.com/sabrina905990/apt/pkg/config"
	"github.com/sabrina905990/apt/pkg/errors"
	"github.com/sabrina905990/apt/pkg/fsutil"
	"github.com/sabrina905990/apt/internal/logger"
)

// Worker implements acquire.URIAcquirer for the HTTP method: one
// ServerState reused across consecutive requests to the same origin, a
// per-item retry-with-fresh-connection policy bounded at two consecutive
// failures, and a header-decide-transfer pipeline.
type Worker struct {
	dialer Dialer
	cfg    *config.Store
	log    *logger.Logger
	server *ServerState
}

// NewWorker builds a Worker backed by real TCP sockets.
func NewWorker(cfg *config.Store, log *logger.Logger) *Worker {
	return &Worker{dialer: TCPDialer{}, cfg: cfg, log: log}
}

// NewWorkerWithDialer builds a Worker backed by a caller-supplied Dialer,
// for tests that want to drive the state machine over a real loopback
// socket without going through DNS.
func NewWorkerWithDialer(dialer Dialer, cfg *config.Store, log *logger.Logger) *Worker {
	return &Worker{dialer: dialer, cfg: cfg, log: log}
}

type headerResult int

const (
	headerOK headerResult = iota
	headerParseError
	headerIOError
)

type headerDecision int

const (
	decisionTransfer headerDecision = iota
	decisionIMSHit
	decisionFatal
	decisionErrorContent
)

// URIAcquire fetches one item: connect (reusing the existing connection
// when the host matches), send the request, parse headers, decide what
// to do with the response, and transfer the body if any. It emits all of
// Status/URIStart/URIDone/Fail itself; Run only dispatches to it.
func (w *Worker) URIAcquire(ctx context.Context, m *acquire.Method, item acquire.FetchItem) error {
	u, err := url.Parse(item.URI)
	if err != nil {
		return m.Fail(item.URI, err.Error())
	}
	host := u.Hostname()
	port := 80
	if p := u.Port(); p != "" {
		if n, convErr := strconv.Atoi(p); convErr == nil {
			port = n
		}
	}

	if w.server == nil || !w.server.Matches(host, port) {
		if w.server != nil {
			w.server.Close()
		}
		w.server = NewServerState(host, port, w.dialer, w.cfg)
	}
	srv := w.server

	failCounter := 0
	for {
		if err := srv.Open(); err != nil {
			return m.Fail(item.URI, err.Error())
		}

		req, err := BuildRequest(item, srv.Proxy)
		if err != nil {
			return m.Fail(item.URI, err.Error())
		}
		srv.Out.EnqueueString(req)

		_ = m.Status(item.URI, "Waiting for headers")
		result, headerErr := w.runHeaders(srv)
		switch result {
		case headerOK:
		case headerParseError:
			return m.Fail(item.URI, headerErr.Error())
		default:
			failCounter++
			srv.Close()
			if failCounter >= 2 {
				return m.Fail(item.URI, "Massive Server Brain Damage")
			}
			continue
		}

		return w.handleResponse(item, srv, m)
	}
}

// runHeaders pumps the connection until a complete header block has
// arrived, then feeds each line to srv.HeaderLine.
func (w *Worker) runHeaders(srv *ServerState) (headerResult, error) {
	srv.resetHeaderState()
	for {
		block, ok := srv.In.WriteTillEl(false)
		if ok {
			for _, line := range splitHeaderLines(block) {
				if err := srv.HeaderLine(line); err != nil {
					return headerParseError, err
				}
			}
			return headerOK, nil
		}

		more, err := Pump(srv, false, nil)
		if err != nil {
			return headerIOError, err
		}
		if !more {
			return headerIOError, errors.Wrap(errors.ErrServerIO, "server closed connection while reading headers")
		}
	}
}

// splitHeaderLines splits a header block on runs of CR/LF.
func splitHeaderLines(block string) []string {
	var lines []string
	start := 0
	i := 0
	for i < len(block) {
		if block[i] == '\n' || block[i] == '\r' {
			lines = append(lines, block[start:i])
			for i+1 < len(block) && (block[i+1] == '\n' || block[i+1] == '\r') {
				i++
			}
			start = i + 1
		}
		i++
	}
	if start < len(block) {
		lines = append(lines, block[start:])
	}
	return lines
}

func (w *Worker) handleResponse(item acquire.FetchItem, srv *ServerState, m *acquire.Method) error {
	decision, dst, res, decErr := dealWithHeaders(item, srv)
	switch decision {
	case decisionIMSHit:
		return m.URIDone(item.URI, res)

	case decisionFatal:
		return m.Fail(item.URI, decErr.Error())

	case decisionErrorContent:
		_ = m.Fail(item.URI, decErr.Error())
		sink, openErr := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if openErr == nil {
			_, _ = runData(srv, sink)
			sink.Close() //nolint:errcheck
		}
		return nil

	case decisionTransfer:
		_ = m.URIStart(item.URI, res.Size, res.LastModified, res.ResumePoint)
		ok, dataErr := runData(srv, dst)
		dst.Close() //nolint:errcheck
		clearFailFile()
		if !srv.Date.IsZero() {
			os.Chtimes(item.Filename, srv.Date, srv.Date) //nolint:errcheck
		}
		if !ok {
			return m.Fail(item.URI, dataErr.Error())
		}
		res.MD5Hash = srv.In.MD5Sum()
		return m.URIDone(item.URI, res)

	default:
		return m.Fail(item.URI, "internal error")
	}
}

// dealWithHeaders classifies the parsed response and, for a 2xx, opens
// the destination file and primes the MD5 accumulator, mirroring
// HttpMethod::DealWithHeaders.
func dealWithHeaders(item acquire.FetchItem, srv *ServerState) (headerDecision, *os.File, acquire.FetchResult, error) {
	res := acquire.FetchResult{Filename: item.Filename}

	if srv.Result == 304 {
		os.Remove(item.Filename) //nolint:errcheck
		res.IMSHit = true
		res.LastModified = item.LastModified
		return decisionIMSHit, nil, res, nil
	}

	if srv.Result < 200 || srv.Result >= 300 {
		msg := fmt.Sprintf("%d %s", srv.Result, srv.Reason)
		if srv.HaveContent {
			return decisionErrorContent, nil, res, errors.Wrap(errors.ErrServerIO, msg)
		}
		return decisionFatal, nil, res, errors.Wrap(errors.ErrServerIO, msg)
	}

	res.LastModified = srv.Date
	res.Size = srv.Size

	f, err := os.OpenFile(item.Filename, os.O_RDWR|os.O_CREATE, fsutil.FileModeDefault)
	if err != nil {
		return decisionFatal, nil, res, errors.Wrap(err, "could not open destination file")
	}

	res.ResumePoint = srv.StartPos
	if err := f.Truncate(srv.StartPos); err != nil {
		f.Close() //nolint:errcheck
		return decisionFatal, nil, res, errors.Wrap(err, "could not truncate destination file")
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close() //nolint:errcheck
		return decisionFatal, nil, res, errors.Wrap(err, "could not seek destination file")
	}

	registerFailFile(f, item.Filename, srv.Date)

	srv.In.ResetMD5()
	if srv.StartPos > 0 {
		prefix := make([]byte, srv.StartPos)
		if _, err := f.ReadAt(prefix, 0); err != nil {
			f.Close() //nolint:errcheck
			clearFailFile()
			return decisionFatal, nil, res, errors.Wrap(err, "problem hashing file")
		}
		srv.In.HashBytes(prefix)
	}

	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		f.Close() //nolint:errcheck
		clearFailFile()
		return decisionFatal, nil, res, errors.Wrap(err, "could not set destination file non-blocking")
	}

	return decisionTransfer, f, res, nil
}

// runData transfers the response body per srv.Encoding, returning false
// with an explanatory error on any transport failure.
func runData(srv *ServerState, dst *os.File) (bool, error) {
	srv.Phase = PhaseData

	if srv.Encoding == EncodingChunked {
		return runChunkedData(srv, dst)
	}

	if srv.Encoding == EncodingCloses {
		srv.In.Limit(-1)
	} else {
		srv.In.Limit(srv.Size - srv.StartPos)
	}

	for {
		if srv.In.IsLimit() {
			srv.In.Limit(-1)
			return true, nil
		}
		more, err := Pump(srv, true, dst)
		if err != nil {
			return false, err
		}
		if !more {
			return true, nil
		}
	}
}

func runChunkedData(srv *ServerState, dst *os.File) (bool, error) {
	for {
		srv.In.Limit(-1)
		line, err := readSingleLine(srv)
		if err != nil {
			return false, err
		}

		length, convErr := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
		if convErr != nil {
			return false, errors.Wrapf(errors.ErrHeaderParse, "bad chunk size %q", line)
		}

		if length == 0 {
			srv.In.Limit(-1)
			for {
				trailer, err := readSingleLine(srv)
				if err != nil {
					return false, err
				}
				if len(trailer) <= 2 {
					break
				}
			}
			return true, nil
		}

		srv.In.Limit(length)
		for {
			if srv.In.IsLimit() {
				break
			}
			more, err := Pump(srv, true, dst)
			if err != nil {
				return false, err
			}
			if !more {
				return false, errors.Wrap(errors.ErrServerIO, "server closed connection mid-chunk")
			}
		}
		srv.In.Limit(-1)

		if _, err := readSingleLine(srv); err != nil {
			return false, err
		}
	}
}

// readSingleLine pumps (without writing to a file) until one full line
// is available in the inbound ring, used for chunk-size lines and
// trailers — never for the data portion of a chunk.
func readSingleLine(srv *ServerState) (string, error) {
	for {
		line, ok := srv.In.WriteTillEl(true)
		if ok {
			return line, nil
		}
		more, err := Pump(srv, false, nil)
		if err != nil {
			return "", err
		}
		if !more {
			return "", errors.Wrap(errors.ErrServerIO, "server closed connection while reading chunk framing")
		}
	}
}
