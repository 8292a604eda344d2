package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func TestRegistryRegistersEveryCollectorExactlyOnce(t *testing.T) {
	r := Registry()
	// A vector with no children is absent from Gather output.
	OperationsTotal.WithLabelValues("queued")
	families, err := r.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"sessionguard_operations_total",
		"sessionguard_wal_appends_total",
		"sessionguard_wal_rotations_total",
		"sessionguard_checkpoints_total",
		"sessionguard_checkpoint_duration_seconds",
		"sessionguard_active_sessions",
	} {
		assert.True(t, names[want], "expected %s to be registered", want)
	}
}

func TestOperationsTotalCountsByState(t *testing.T) {
	OperationsTotal.Reset()
	OperationsTotal.WithLabelValues("completed").Inc()
	OperationsTotal.WithLabelValues("completed").Inc()
	OperationsTotal.WithLabelValues("failed").Inc()

	r := prometheus.NewRegistry()
	r.MustRegister(OperationsTotal)

	assert.Equal(t, float64(2), counterValue(t, r, "sessionguard_operations_total", map[string]string{"state": "completed"}))
	assert.Equal(t, float64(1), counterValue(t, r, "sessionguard_operations_total", map[string]string{"state": "failed"}))
}
