package httpfetch

import (
	"golang.org/x/sys/unix"

	"github.com/sabrina905990/apt/pkg/errors"
)

// Dialer opens a raw, connected socket to host:port and returns its file
// descriptor, still in blocking mode. It exists so tests can substitute a
// fake that hands back a loopback-connected fd without going through real
// DNS resolution.
type Dialer interface {
	Dial(host string, port int) (fd int, err error)
}

// TCPDialer is the production Dialer: resolve via the one-entry DNS
// cache, open an AF_INET/SOCK_STREAM socket, and connect, exactly
// mirroring ServerState::Open's socket()/connect() pair. IPv6 and
// multi-address fallback are explicitly out of scope.
type TCPDialer struct{}

func (TCPDialer) Dial(host string, port int) (int, error) {
	addr, err := resolve(host)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.Wrapf(errors.ErrConnectFailed, "socket: %v", err)
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: addr}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd) //nolint:errcheck
		return -1, errors.Wrapf(errors.ErrConnectFailed, "connect: %v", err)
	}

	return fd, nil
}
