package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, component Component, debugOn bool, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	SetDebug(component, debugOn)
	fn()
	return buf.String()
}

func TestLoggerLevelGating(t *testing.T) {
	tests := []struct {
		name     string
		debugOn  bool
		logFn    func(l *Logger)
		contains []string
		excludes []string
	}{
		{
			name:    "info always shown",
			debugOn: false,
			logFn:   func(l *Logger) { l.Info("waiting for file") },
			contains: []string{"waiting for file", "level=INFO"},
		},
		{
			name:     "debug hidden without Debug::Acquire::http",
			debugOn:  false,
			logFn:    func(l *Logger) { l.Debug("connecting to host") },
			excludes: []string{"connecting to host"},
		},
		{
			name:    "debug shown once enabled",
			debugOn: true,
			logFn:   func(l *Logger) { l.Debug("connecting to host") },
			contains: []string{"connecting to host", "level=DEBUG"},
		},
		{
			name:    "component tag present",
			debugOn: false,
			logFn:   func(l *Logger) { l.Info("hello") },
			contains: []string{"component=http"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, ComponentHTTP, tt.debugOn, func() {
				tt.logFn(For(ComponentHTTP))
			})
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestComponentsAreIndependent(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	SetDebug(ComponentHTTP, true)
	SetDebug(ComponentGPGV, false)

	For(ComponentHTTP).Debug("http debug line")
	For(ComponentGPGV).Debug("gpgv debug line")

	out := buf.String()
	assert.Contains(t, out, "http debug line")
	assert.NotContains(t, out, "gpgv debug line")
}

func TestTransferStats(t *testing.T) {
	out := captureOutput(t, ComponentHTTP, true, func() {
		For(ComponentHTTP).TransferStats(5*1024*1024, 2.5)
	})
	assert.Contains(t, out, "MB")
	assert.Contains(t, out, "2.50s")
}

func TestParseLevel(t *testing.T) {
	_, err := ParseLevel("debug")
	assert.NoError(t, err)
	_, err = ParseLevel("bogus")
	assert.Error(t, err)
}
