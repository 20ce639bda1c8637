package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/abossard/vjbus/pkg/registry"
)

func TestCollectorUpdatesRegistryEntriesGauge(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.Open(dir)
	require.NoError(t, err)

	require.NoError(t, reg.Register(&registry.Entry{
		Worker:      "example-worker",
		InstanceID:  "abc",
		StartedAt:   time.Now(),
		HeartbeatAt: time.Now(),
		Status:      registry.StatusRunning,
	}))

	c := NewCollector(reg)
	c.collect()

	g, err := RegistryEntriesTotal.GetMetricWithLabelValues(string(registry.StatusRunning))
	require.NoError(t, err)

	var metric dto.Metric
	require.NoError(t, g.Write(&metric))
	require.Equal(t, float64(1), metric.GetGauge().GetValue())
}
