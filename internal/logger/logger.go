// Package logger provides the stderr-only diagnostic logging used by both
// worker binaries. Standard output is the acquire-method protocol channel
// and must never receive a log line; every logger in this package writes to
// stderr (or, in tests, to a captured buffer).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// Component identifies which worker a logger instance speaks for, matching
// the two Debug::Acquire::* switches each component's verbosity gates on.
type Component string

const (
	ComponentHTTP Component = "http"
	ComponentGPGV Component = "gpgv"
)

// Fields is a map type for structured log attributes.
type Fields map[string]interface{}

var (
	testOutput   io.Writer
	testOutputMu sync.Mutex

	mu      sync.Mutex
	loggers = map[Component]*slog.Logger{}
	debug   = map[Component]bool{}
)

// SetTestOutput redirects all logger output to w, for use by tests.
func SetTestOutput(w io.Writer) {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = w
	mu.Lock()
	loggers = map[Component]*slog.Logger{}
	mu.Unlock()
}

// UnsetTestOutput restores stderr as the output.
func UnsetTestOutput() {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = nil
	mu.Lock()
	loggers = map[Component]*slog.Logger{}
	mu.Unlock()
}

func output() io.Writer {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	if testOutput != nil {
		return testOutput
	}
	return os.Stderr
}

// SetDebug turns debug-level logging for a component on or off, mirroring
// Debug::Acquire::http and Debug::Acquire::gpgv.
func SetDebug(c Component, on bool) {
	mu.Lock()
	defer mu.Unlock()
	debug[c] = on
	delete(loggers, c)
}

func get(c Component) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	level := slog.LevelInfo
	if debug[c] {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(output(), &slog.HandlerOptions{Level: level})
	l := slog.New(h).With("component", string(c))
	loggers[c] = l
	return l
}

// For returns the logger for a given component.
func For(c Component) *Logger {
	return &Logger{component: c}
}

// Logger is a thin, component-scoped wrapper around a package-level
// structured logging API, keyed to one acquire method.
type Logger struct {
	component Component
}

func (l *Logger) log(level slog.Level, msg string, fields ...Fields) {
	attrs := mergeFields(fields...)
	get(l.component).Log(context.Background(), level, msg, attrs...)
}

func (l *Logger) Info(msg string, fields ...Fields)  { l.log(slog.LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(slog.LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(slog.LevelError, msg, fields...) }
func (l *Logger) Debug(msg string, fields ...Fields) { l.log(slog.LevelDebug, msg, fields...) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

// TransferStats logs a debug line with a human-readable byte count and,
// given a nonzero elapsed time, a transfer rate.
func (l *Logger) TransferStats(bytesMoved int64, elapsedSeconds float64) {
	if elapsedSeconds <= 0 {
		l.Debugf("got %s", humanize.Bytes(uint64(bytesMoved)))
		return
	}
	rate := float64(bytesMoved) / elapsedSeconds
	l.Debugf("got %s in %.2fs at %s/s", humanize.Bytes(uint64(bytesMoved)), elapsedSeconds, humanize.Bytes(uint64(rate)))
}

func mergeFields(fields ...Fields) []interface{} {
	result := make([]interface{}, 0)
	for _, field := range fields {
		for k, v := range field {
			result = append(result, k, v)
		}
	}
	return result
}

// ParseLevel is kept for compatibility with config-driven level strings;
// it only validates, since level is controlled per-component by SetDebug.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
