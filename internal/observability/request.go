package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta is the caller metadata attached to connection events.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// RequestMetaFrom reads the request and device ids from headers and the
// client address, preferring the first X-Forwarded-For hop.
func RequestMetaFrom(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
