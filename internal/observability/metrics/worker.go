package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics tracks queued evaluation jobs. It owns the worker registry;
// evaluation and resilience collectors register on it too.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsInFlight prometheus.Gauge
	queueLag     prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rxcheck",
			Subsystem:   "worker",
			Name:        "jobs_total",
			Help:        "Processed evaluation jobs by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	// Two provider calls plus the comparison dominate a job.
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "rxcheck",
			Subsystem:   "worker",
			Name:        "job_duration_seconds",
			Help:        "Evaluation job duration in seconds by outcome.",
			Buckets:     []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "rxcheck",
			Subsystem:   "worker",
			Name:        "jobs_in_flight",
			Help:        "Evaluation jobs currently being processed.",
			ConstLabels: constLabels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "rxcheck",
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between evaluation submission and job start.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag)

	return &WorkerMetrics{
		service:      service,
		registry:     registry,
		jobsTotal:    jobsTotal,
		jobDuration:  jobDuration,
		jobsInFlight: jobsInFlight,
		queueLag:     queueLag,
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQueueLag records how long an evaluation waited since it was
// submitted. Clock skew can make the lag negative; those samples are dropped.
func (m *WorkerMetrics) ObserveQueueLag(submittedAt time.Time, now time.Time) {
	lag := now.Sub(submittedAt)
	if submittedAt.IsZero() || lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

// TrackJob marks a job in flight. The returned func records its outcome.
func (m *WorkerMetrics) TrackJob() func(err error) {
	started := time.Now()
	m.jobsInFlight.Inc()
	return func(err error) {
		m.jobsInFlight.Dec()
		outcome := outcomeLabel(err)
		m.jobsTotal.WithLabelValues(outcome).Inc()
		m.jobDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	}
}
