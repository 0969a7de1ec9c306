package httpfetch

import (
	"net"
	"sync"

	"github.com/sabrina905990/apt/pkg/errors"
)

// dnsCache holds exactly one host/address pair, process-global: a
// larger cache is pointless within one short-lived worker process
// talking to a single origin, and rotating DNS answers would make a
// bigger cache actively misleading.
var dnsCache struct {
	mu   sync.Mutex
	host string
	addr [4]byte
}

func resolve(host string) ([4]byte, error) {
	dnsCache.mu.Lock()
	defer dnsCache.mu.Unlock()

	if dnsCache.host == host {
		return dnsCache.addr, nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return [4]byte{}, errors.Wrapf(errors.ErrResolveFailed, "could not resolve %q: %v", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var addr [4]byte
			copy(addr[:], v4)
			dnsCache.host = host
			dnsCache.addr = addr
			return addr, nil
		}
	}
	return [4]byte{}, errors.Wrapf(errors.ErrResolveFailed, "no A record for %q", host)
}
