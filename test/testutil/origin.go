// Package testutil provides a minimal raw-socket HTTP origin server for
// driving pkg/httpfetch over real loopback TCP. It intentionally does not
// use net/http: the point of these tests is to exercise the hand-rolled,
// non-blocking transport against a real socket, not against Go's own HTTP
// server and its connection handling.
package testutil

import (
	"net"
	"strings"
	"testing"
)

// Handler receives one accepted connection. It is responsible for reading
// whatever it cares to from conn and writing a complete raw response.
type Handler func(conn net.Conn)

// StartOrigin listens on loopback and accepts connections in a background
// goroutine for the lifetime of the test, dispatching each one to handler.
// Returns the port chosen by the kernel.
func StartOrigin(t *testing.T, handler Handler) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close() //nolint:errcheck
				handler(conn)
			}()
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

// ReadRequestHeaders reads from conn until a blank-line header terminator
// has been seen, returning everything read so far as a string for
// assertions against the request line and headers.
func ReadRequestHeaders(conn net.Conn) (string, error) {
	buf := make([]byte, 4096)
	var total []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			total = append(total, buf[:n]...)
		}
		if strings.Contains(string(total), "\r\n\r\n") {
			return string(total), nil
		}
		if err != nil {
			return string(total), err
		}
	}
}
