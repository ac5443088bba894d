package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"dirsweep/internal/model"
)

// reasonNone labels results that carry no reason (deleted).
const reasonNone = "none"

// Per-path pipeline metrics
var (
	// ResultsTotal counts terminal results by status and reason
	ResultsTotal *prometheus.CounterVec

	// PathDuration tracks how long one path takes from guard to removal
	PathDuration prometheus.Histogram

	// WorkersActive tracks workers currently processing a path
	WorkersActive prometheus.Gauge
)

// initCleanupMetrics initializes all per-path metrics
func initCleanupMetrics() {
	ResultsTotal = NewCounterVec(
		"dirsweep_results_total",
		"Terminal results by status and reason.",
		[]string{"status", "reason"},
	)

	PathDuration = NewDurationHistogram(
		"dirsweep_path_duration_seconds",
		"Time spent on one candidate path in seconds.",
		PathBuckets,
	)

	WorkersActive = NewGauge(
		"dirsweep_workers_active",
		"Number of workers currently processing a path.",
	)
}

// registerCleanupMetrics registers all per-path metrics
func registerCleanupMetrics() {
	Registry.MustRegister(ResultsTotal)
	Registry.MustRegister(PathDuration)
	Registry.MustRegister(WorkersActive)
}

// RecordResult counts one terminal result
func RecordResult(r model.PathResult) {
	reason := string(r.Reason)
	if reason == "" {
		reason = reasonNone
	}
	ResultsTotal.WithLabelValues(string(r.Status), reason).Inc()
	PathDuration.Observe(r.Duration.Seconds())
}

// SetActiveWorkers sets the number of busy workers
func SetActiveWorkers(count int) {
	WorkersActive.Set(float64(count))
}
