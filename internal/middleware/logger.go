package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra/geoip"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger emits one access-log line per request. When a country resolver
// is provided the client's country code is attached to each line.
func Logger(l zerolog.Logger, countries geoip.CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			ip := ClientIP(r)
			evt := l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start)).
				Str("ip", ip).
				Str("request_id", RequestIDFromContext(r.Context()))
			if countries != nil {
				if cc, err := countries.CountryCode(ip); err == nil && cc != "" {
					evt = evt.Str("country", cc)
				}
			}
			evt.Msg("request")
		})
	}
}
