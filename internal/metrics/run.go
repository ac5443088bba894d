package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dirsweep/internal/model"
)

// Run-level metrics
var (
	// RunDuration records the wall time of the last run
	RunDuration prometheus.Gauge

	// LastRunTimestamp records Unix timestamp of the last completed run
	LastRunTimestamp prometheus.Gauge

	// RunsTotal counts completed runs by outcome (ok, errors, interrupted)
	RunsTotal *prometheus.CounterVec

	// SinkErrorsTotal counts failures reported by result sinks
	SinkErrorsTotal prometheus.Counter
)

// initRunMetrics initializes all run-level metrics
func initRunMetrics() {
	RunDuration = NewGauge(
		"dirsweep_run_duration_seconds",
		"Duration of the last run in seconds.",
	)

	LastRunTimestamp = NewGauge(
		"dirsweep_last_run_timestamp",
		"Timestamp of the last completed run (Unix epoch seconds).",
	)

	RunsTotal = NewCounterVec(
		"dirsweep_runs_total",
		"Completed runs by outcome.",
		[]string{"outcome"},
	)

	SinkErrorsTotal = NewCounter(
		"dirsweep_sink_errors_total",
		"Total number of result sink failures.",
	)
}

// registerRunMetrics registers all run-level metrics
func registerRunMetrics() {
	Registry.MustRegister(RunDuration)
	Registry.MustRegister(LastRunTimestamp)
	Registry.MustRegister(RunsTotal)
	Registry.MustRegister(SinkErrorsTotal)
}

// RecordRun stores the outcome of a finished run
func RecordRun(s model.Summary, finished time.Time) {
	RunDuration.Set(s.ElapsedSeconds)
	LastRunTimestamp.Set(float64(finished.Unix()))
	RunsTotal.WithLabelValues(Outcome(s)).Inc()
}

// Outcome classifies a summary for the runs_total label
func Outcome(s model.Summary) string {
	switch {
	case s.Interrupted:
		return "interrupted"
	case s.Errors > 0:
		return "errors"
	default:
		return "ok"
	}
}

// IncSinkErrors counts one sink failure
func IncSinkErrors() {
	SinkErrorsTotal.Inc()
}
