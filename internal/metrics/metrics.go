package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsCompleted     prometheus.Counter
	JobsFailed        prometheus.Counter
	JobLatency        prometheus.Histogram
	SubmissionsTotal  prometheus.Counter
	RequestsRateLimit prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_jobs_completed_total",
			Help: "Total number of jobs that reached completed.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_jobs_failed_total",
			Help: "Total number of jobs that reached failed.",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notification_job_processing_seconds",
			Help:    "Per-job latency from claim to terminal transition.",
			Buckets: prometheus.DefBuckets,
		}),
		SubmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_submissions_total",
			Help: "Total number of accepted submissions.",
		}),
		RequestsRateLimit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "requests_rate_limited_total",
			Help: "Requests rejected by the per-fingerprint rate limiter.",
		}),
	}

	reg.MustRegister(
		m.JobsCompleted,
		m.JobsFailed,
		m.JobLatency,
		m.SubmissionsTotal,
		m.RequestsRateLimit,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so the worker stays import-free.
func (m *Metrics) WorkerHooks() (onCompleted func(time.Duration), onFailed func()) {
	onCompleted = func(latency time.Duration) {
		m.JobsCompleted.Inc()
		m.JobLatency.Observe(latency.Seconds())
	}
	onFailed = func() {
		m.JobsFailed.Inc()
	}
	return
}
