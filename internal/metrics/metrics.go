package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Test results by outcome: ok, fail, error.
const (
	ResultOK    = "ok"
	ResultFail  = "fail"
	ResultError = "error"
)

var (
	TestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ptx_test_results_total",
		Help: "The total number of executed tests by result",
	}, []string{"result"})

	TestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ptx_test_duration_seconds",
		Help:    "Wall time of a single test",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~5.5min
	})

	Batches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ptx_batches_total",
		Help: "The total number of device round-trips",
	})

	ElementsVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ptx_elements_verified_total",
		Help: "The total number of device results checked against the host",
	})

	ElementsMismatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ptx_elements_mismatched_total",
		Help: "The total number of device results that disagreed with the host",
	})

	MemoryBudgetBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ptx_memory_budget_bytes",
		Help: "Device memory budget used to size batches in the last test",
	})
)

// WriteTextfile writes every registered metric to path in the text
// exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
