package httpfetch

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabrina905990/apt/pkg/circularbuf"
	"github.com/sabrina905990/apt/pkg/errors"
)

const idleTimeout = 120 * time.Second

// errShutdown is returned by Pump when a SIGTERM/SIGINT has been
// observed. The worker loop does not single it out: like any other Pump
// error it ends the current header read or body transfer.
var errShutdown = errors.ErrShutdownRequested

// IsShutdown reports whether err is the sentinel Pump returns once a
// termination signal has been observed.
func IsShutdown(err error) bool { return err == errShutdown }

// Pump performs exactly one readiness-wait step, mirroring
// HttpMethod::Go: one select(2)-equivalent call over the server socket
// and (when toFile is true) the destination file, then a single drain of
// whichever side came back ready. Mid-transfer cancellation is not an
// in-band protocol message here; it is polled from the package-level
// shutdown flag set by the SIGTERM/SIGINT handler, so signal
// delivery is the only way a fetch is ever interrupted
// mid-flight.
func Pump(srv *ServerState, toFile bool, dst *os.File) (bool, error) {
	if srv.fd == -1 && !srv.In.WriteSpace() {
		return false, nil
	}

	if ShutdownRequested() {
		return false, errShutdown
	}

	var rfds, wfds unix.FdSet
	maxFd := -1

	addFd := func(set *unix.FdSet, fd int) {
		set.Bits[fd/64] |= int64(1) << (uint(fd) % 64)
		if fd > maxFd {
			maxFd = fd
		}
	}

	if srv.fd != -1 {
		if srv.Out.WriteSpace() {
			addFd(&wfds, srv.fd)
		}
		if srv.In.ReadSpace() {
			addFd(&rfds, srv.fd)
		}
	}

	fileFD := -1
	if dst != nil {
		fileFD = int(dst.Fd())
	}
	if fileFD != -1 && toFile && srv.In.WriteSpace() {
		addFd(&wfds, fileFD)
	}

	tv := unix.NsecToTimeval(idleTimeout.Nanoseconds())
	n, err := unix.Select(maxFd+1, &rfds, &wfds, nil, &tv)
	if err != nil {
		if err == unix.EINTR {
			return true, nil
		}
		return false, errors.Wrap(err, "select failed")
	}
	if n == 0 {
		return serverDie(srv, dst, errors.Wrap(errors.ErrConnectionTimeout, "connection timed out"))
	}

	if srv.fd != -1 && isSet(&rfds, srv.fd) {
		if err := srv.In.ReadFromFD(srv.fd); err != nil {
			return serverDie(srv, dst, err)
		}
	}
	if srv.fd != -1 && isSet(&wfds, srv.fd) {
		if err := srv.Out.WriteToFD(srv.fd); err != nil {
			return serverDie(srv, dst, err)
		}
	}
	if fileFD != -1 && isSet(&wfds, fileFD) {
		if err := srv.In.WriteToFD(fileFD); err != nil {
			return false, errors.Wrap(err, "error writing to output file")
		}
	}

	return true, nil
}

func isSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(int64(1)<<(uint(fd)%64)) != 0
}

// serverDie handles a read/write failure or timeout on the server
// socket: if we were transferring body data, flush whatever is left in
// the inbound ring to the file first; then decide whether the close was
// expected (limit satisfied, or Closes encoding, meaning success) or
// premature (an error).
func serverDie(srv *ServerState, dst *os.File, cause error) (bool, error) {
	if srv.Phase == PhaseData && dst != nil {
		unix.SetNonblock(int(dst.Fd()), false) //nolint:errcheck
		for srv.In.WriteSpace() {
			if err := srv.In.WriteToFD(int(dst.Fd())); err != nil {
				return false, errors.Wrap(err, "error writing to the file")
			}
			if srv.In.IsLimit() {
				return true, nil
			}
		}
	}

	if !srv.In.IsLimit() && srv.Phase != PhaseHeader && srv.Encoding != EncodingCloses {
		srv.Close()
		if circularbuf.IsEOF(cause) {
			return false, errors.Wrap(errors.ErrServerIO, "error reading from server: remote end closed connection")
		}
		return false, errors.Wrap(cause, "error reading from server")
	}

	srv.In.Limit(-1)
	if !srv.In.WriteSpace() {
		srv.Close()
		return false, nil
	}
	// Possibly multiple pipelined responses arrived in one packet; keep
	// them buffered even though this worker never sends more than one
	// request at a time.
	srv.Close()
	return true, nil
}

// Flush drains whatever remains in the inbound ring into dst, stopping
// early once a configured limit is reached. The worker's non-2xx sink
// path does not use it; that body goes through runData.
func Flush(srv *ServerState, dst *os.File) error {
	if dst == nil {
		return nil
	}
	unix.SetNonblock(int(dst.Fd()), false) //nolint:errcheck
	if !srv.In.WriteSpace() {
		return nil
	}
	for srv.In.WriteSpace() {
		if err := srv.In.WriteToFD(int(dst.Fd())); err != nil {
			return errors.Wrap(err, "error writing to file")
		}
		if srv.In.IsLimit() {
			return nil
		}
	}
	return nil
}
