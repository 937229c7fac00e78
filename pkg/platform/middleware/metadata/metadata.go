package metadata

import (
	"net"
	"net/http"
	"strings"

	"nidapi/pkg/requestcontext"
)

// Unknown is recorded when the client address or User-Agent cannot be determined.
const Unknown = "Unknown"

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), UserAgentFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest resolves the audit IP: first X-Forwarded-For entry,
// then X-Real-IP, then the connection address, then "Unknown".
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if addr := r.RemoteAddr; addr != "" {
		// RemoteAddr is "ip:port" or "[ipv6]:port"
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}

	return Unknown
}

// UserAgentFromRequest returns the User-Agent verbatim, or "Unknown" when absent.
func UserAgentFromRequest(r *http.Request) string {
	if ua := r.Header.Get("User-Agent"); ua != "" {
		return ua
	}
	return Unknown
}
