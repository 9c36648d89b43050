// Package metrics provides observability for the pipeline orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks spawn and replication outcomes. All methods are nil-safe so
// tests can run without a registry.
type Metrics struct {
	CallStagesSpawned   prometheus.Counter
	ReplicationFailures prometheus.Counter
	ReplicationDuration prometheus.Histogram
}

// New creates a Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		CallStagesSpawned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verimed_call_stages_spawned_total",
			Help: "Total call-stage transactions spawned by the watched transition",
		}),
		ReplicationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verimed_replication_failures_total",
			Help: "Total snapshot replications that partially failed after a successful spawn",
		}),
		ReplicationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verimed_replication_duration_seconds",
			Help:    "Duration of snapshot replication following a spawn",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementSpawned records a successful call-stage spawn.
func (m *Metrics) IncrementSpawned() {
	if m == nil {
		return
	}
	m.CallStagesSpawned.Inc()
}

// IncrementReplicationFailure records a partially failed replication.
func (m *Metrics) IncrementReplicationFailure() {
	if m == nil {
		return
	}
	m.ReplicationFailures.Inc()
}

// ObserveReplication records the duration of one replication pass.
// Call with time.Now() captured at the start of replication.
func (m *Metrics) ObserveReplication(start time.Time) {
	if m == nil {
		return
	}
	m.ReplicationDuration.Observe(time.Since(start).Seconds())
}
