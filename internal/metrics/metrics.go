// Package metrics defines the Prometheus instrumentation surface for the
// worker process.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cutworker",
		Name:      "jobs_total",
		Help:      "Total jobs processed by outcome code.",
	}, []string{"code"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cutworker",
		Name:      "job_duration_seconds",
		Help:      "End-to-end job duration in seconds.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"code"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cutworker",
		Name:      "stage_duration_seconds",
		Help:      "Duration of one orchestrator stage in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"stage"})

	LockContentionTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cutworker",
		Name:      "lock_contention_total",
		Help:      "Total jobs that short-circuited because another worker held the lock.",
	})

	FallbackUsedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cutworker",
		Name:      "onset_fallback_total",
		Help:      "Total jobs that fell back to the uniform onset substitute sequence.",
	})
)

// Register registers every collector above against reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		JobsTotal,
		JobDuration,
		StageDuration,
		LockContentionTotal,
		FallbackUsedTotal,
	)
}
