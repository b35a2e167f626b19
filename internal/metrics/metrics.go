// Package metrics holds the prometheus collectors shared by the checker,
// the engine supervisor and the scheduler. Collectors register with the
// default registry; Handler serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts logical check calls by mode and result
	// (ok, cache_hit, backoff, error).
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corrector_checks_total",
		Help: "Total check calls by backend mode and result",
	}, []string{"mode", "result"})

	// AttemptsTotal counts network attempts by mode and outcome.
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corrector_check_attempts_total",
		Help: "Total network attempts by backend mode and outcome",
	}, []string{"mode", "outcome"})

	// AttemptDuration tracks network attempt latency.
	AttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corrector_check_attempt_duration_seconds",
		Help:    "Network attempt duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"mode"})

	// CacheLookups counts cache lookups by freshness.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corrector_cache_lookups_total",
		Help: "Result cache lookups by outcome",
	}, []string{"outcome"})

	// FailoversTotal counts automatic backend switches.
	FailoversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corrector_failovers_total",
		Help: "Automatic backend mode switches",
	}, []string{"from", "to"})

	// ConsecutiveErrors mirrors the connection tracker's error count.
	ConsecutiveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corrector_consecutive_errors",
		Help: "Consecutive exhausted-retry failures",
	})

	// EngineStarts counts local engine start attempts by result.
	EngineStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corrector_engine_starts_total",
		Help: "Local engine start attempts by result",
	}, []string{"result"})

	// EngineStartDuration tracks how long the engine took to become ready.
	EngineStartDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "corrector_engine_start_duration_seconds",
		Help:    "Local engine start duration in seconds",
		Buckets: prometheus.LinearBuckets(1, 5, 13), // 1s to 61s
	})

	// CyclesTotal counts scheduler check cycles by outcome
	// (published, stale, failed, skipped).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corrector_cycles_total",
		Help: "Scheduler check cycles by outcome",
	}, []string{"outcome"})

	// DiagnosticsPublished tracks the size of published diagnostic sets.
	DiagnosticsPublished = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "corrector_diagnostics_published",
		Help:    "Diagnostics per published set",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
