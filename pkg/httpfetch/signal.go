package httpfetch

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// failState is the process-global failure-recovery triple: the currently
// open destination file, so a SIGTERM/SIGINT handler can close and
// timestamp it without re-entering any complex code.
var failState struct {
	mu   sync.Mutex
	path string
	file *os.File
	date time.Time
}

var shutdownRequested atomic.Bool

// ShutdownRequested reports whether a termination signal has been
// observed since the process started.
func ShutdownRequested() bool { return shutdownRequested.Load() }

// registerFailFile records the destination file currently open for
// writing, along with the server-advertised Date to stamp it with if the
// process is killed mid-transfer.
func registerFailFile(f *os.File, path string, date time.Time) {
	failState.mu.Lock()
	defer failState.mu.Unlock()
	failState.file = f
	failState.path = path
	failState.date = date
}

// clearFailFile unregisters the destination file, called once it has
// been closed normally.
func clearFailFile() {
	failState.mu.Lock()
	defer failState.mu.Unlock()
	failState.file = nil
	failState.path = ""
	failState.date = time.Time{}
}

// InstallSignalHandler installs the SIGTERM/SIGINT handler mirroring
// HttpMethod::SigTerm: close the in-progress destination file (if any),
// stamp its atime/mtime with the server's advertised Date so a later run
// can resume via If-Range, and exit 100. With no file open, exit 100
// immediately.
func InstallSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-ch
		shutdownRequested.Store(true)

		failState.mu.Lock()
		f, path, date := failState.file, failState.path, failState.date
		failState.mu.Unlock()

		if f == nil {
			os.Exit(100)
		}
		f.Close() //nolint:errcheck
		if !date.IsZero() {
			os.Chtimes(path, date, date) //nolint:errcheck
		}
		os.Exit(100)
	}()
}
