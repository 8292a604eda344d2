// Package metrics exposes the engine's durability counters as Prometheus
// collectors: operations by outcome, WAL appends and rotations, and
// checkpoint captures. Call the package-level Inc/Observe helpers from
// internal/core instead of wiring a registry through constructors, so core
// stays importable without a metrics dependency at the call site.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionguard",
		Name:      "operations_total",
		Help:      "Tracked operations by resulting state.",
	}, []string{"state"})

	WALAppendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sessionguard",
		Name:      "wal_appends_total",
		Help:      "Write-ahead log entries appended.",
	})

	WALRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sessionguard",
		Name:      "wal_rotations_total",
		Help:      "Write-ahead log file rotations.",
	})

	CheckpointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sessionguard",
		Name:      "checkpoints_total",
		Help:      "Checkpoints captured across all sessions.",
	})

	CheckpointDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sessionguard",
		Name:      "checkpoint_duration_seconds",
		Help:      "Wall-clock time spent capturing a checkpoint.",
		Buckets:   prometheus.DefBuckets,
	})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessionguard",
		Name:      "active_sessions",
		Help:      "Number of sessions this process currently holds open.",
	})
)

// Registry bundles every collector for registration against a
// prometheus.Registerer without requiring the default global registry.
func Registry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(OperationsTotal, WALAppendsTotal, WALRotationsTotal, CheckpointsTotal, CheckpointDurationSeconds, ActiveSessions)
	return r
}
