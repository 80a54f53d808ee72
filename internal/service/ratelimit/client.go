package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is shared by every request whose origin cannot be derived.
const UnknownClient = "unknown"

// ClientID derives the rate limiting key for r: the connection address,
// then the first X-Forwarded-For entry, then UnknownClient.
func ClientID(r *http.Request) string {
	if host := hostOnly(r.RemoteAddr); host != "" {
		return host
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return UnknownClient
}

func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
