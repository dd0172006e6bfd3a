package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics(t *testing.T) {
	t.Run("TestResults", func(t *testing.T) {
		before := testutil.ToFloat64(TestResults.WithLabelValues(ResultFail))
		TestResults.WithLabelValues(ResultFail).Inc()
		TestResults.WithLabelValues(ResultFail).Inc()
		assert.Equal(t, before+2, testutil.ToFloat64(TestResults.WithLabelValues(ResultFail)))
	})

	t.Run("Elements", func(t *testing.T) {
		verified := testutil.ToFloat64(ElementsVerified)
		ElementsVerified.Add(128)
		assert.Equal(t, verified+128, testutil.ToFloat64(ElementsVerified))

		mismatched := testutil.ToFloat64(ElementsMismatched)
		ElementsMismatched.Inc()
		assert.Equal(t, mismatched+1, testutil.ToFloat64(ElementsMismatched))
	})

	t.Run("MemoryBudgetBytes", func(t *testing.T) {
		MemoryBudgetBytes.Set(1 << 29)
		assert.Equal(t, float64(1<<29), testutil.ToFloat64(MemoryBudgetBytes))
	})

	t.Run("TestDuration", func(t *testing.T) {
		assert.NotPanics(t, func() {
			TestDuration.Observe(0.25)
		})
	})
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		TestResults,
		TestDuration,
		Batches,
		ElementsVerified,
		ElementsMismatched,
		MemoryBudgetBytes,
	}

	for _, c := range collectors {
		err := prometheus.Register(c)
		var already prometheus.AlreadyRegisteredError
		assert.ErrorAs(t, err, &already)
	}
}

func TestWriteTextfile(t *testing.T) {
	Batches.Inc()
	path := filepath.Join(t.TempDir(), "ptx.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ptx_batches_total")
	assert.Contains(t, string(data), "ptx_memory_budget_bytes")
}
