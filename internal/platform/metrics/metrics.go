// Package metrics holds process-level Prometheus metrics. Module-specific
// metrics live next to their module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks transport-level request latency.
type Metrics struct {
	RequestDuration prometheus.Histogram
}

// New creates and registers all transport metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verimed_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveRequest records one request duration. Nil-safe for tests without a
// registry.
func (m *Metrics) ObserveRequest(start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(time.Since(start).Seconds())
}
