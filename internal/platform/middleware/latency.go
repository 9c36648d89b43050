package middleware

import (
	"net/http"
	"time"

	"verimed/internal/platform/metrics"
)

// LatencyMiddleware records request durations into the transport histogram.
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			m.ObserveRequest(start)
		})
	}
}
