package httpfetch

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sabrina905990/apt/pkg/acquire"
)

const userAgent = "Debian APT-HTTP/1.2 (go-apt-method)"

// BuildRequest formats a GET request for item, choosing resume
// (Range/If-Range) over conditional (If-Modified-Since) based on the
// current state of the destination file.
func BuildRequest(item acquire.FetchItem, proxy string) (string, error) {
	u, err := url.Parse(item.URI)
	if err != nil {
		return "", err
	}

	host := u.Hostname()
	if port := u.Port(); port != "" {
		host = host + ":" + port
	}

	var b strings.Builder
	if proxy == "" {
		path := u.RequestURI()
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(&b, "GET %s HTTP/1.1\r\nHost: %s\r\nConnection: keep-alive\r\n", path, host)
	} else {
		fmt.Fprintf(&b, "GET %s HTTP/1.1\r\nHost: %s\r\n", item.URI, host)
	}

	if fi, err := os.Stat(item.Filename); err == nil && fi.Size() > 0 {
		fmt.Fprintf(&b, "Range: bytes=%d-\r\nIf-Range: %s\r\n", fi.Size()-1, formatRFC1123(fi.ModTime()))
	} else if !item.LastModified.IsZero() {
		fmt.Fprintf(&b, "If-Modified-Since: %s\r\n", formatRFC1123(item.LastModified))
	}

	fmt.Fprintf(&b, "User-Agent: %s\r\n\r\n", userAgent)
	return b.String(), nil
}

func formatRFC1123(t time.Time) string {
	return t.UTC().Format(time.RFC1123)
}
