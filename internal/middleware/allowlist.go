package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// ClientIP extracts the caller address, preferring proxy headers over
// the raw connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		if net.ParseIP(real) != nil {
			return real
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPAllowlist rejects callers whose address is not on the list. The check
// is disabled in local environments and when no addresses are configured.
func IPAllowlist(appEnv string, allowed []string, l zerolog.Logger) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allow[ip] = struct{}{}
		}
	}
	enabled := appEnv != "local" && len(allow) > 0

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			if _, ok := allow[ip]; !ok {
				l.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("request from disallowed address")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
