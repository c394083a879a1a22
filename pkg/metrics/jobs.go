package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records outcomes for scheduled background jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retry    *prometheus.CounterVec
	deferred *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled job runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful scheduled job runs.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed scheduled job runs that were not retried.",
	}, []string{"job"})
	retry := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_retry",
		Help: "Scheduled job runs that asked to be retried later.",
	}, []string{"job"})
	deferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_deferred",
		Help: "Scheduled job runs postponed because a constraint was unmet.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, retry, deferred)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retry:    retry,
		deferred: deferred,
	}
}

// ObserveDuration records the duration for the named job.
func (c *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *JobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *JobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncRetry increments the retry counter for the named job.
func (c *JobMetrics) IncRetry(job string) {
	if c == nil || c.retry == nil {
		return
	}
	c.retry.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncDeferred increments the constraint-deferral counter for the named job.
func (c *JobMetrics) IncDeferred(job string) {
	if c == nil || c.deferred == nil {
		return
	}
	c.deferred.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
