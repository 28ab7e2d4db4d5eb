package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// EvaluationMetrics implements ports.EvaluationObserver on Prometheus.
type EvaluationMetrics struct {
	service string

	evaluationTotal    *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	evaluationInFlight prometheus.Gauge
	reviewerDuration   *prometheus.HistogramVec
	humanReviewTotal   *prometheus.CounterVec
	fallbackTotal      *prometheus.CounterVec
	agreementTotal     *prometheus.CounterVec
}

func NewEvaluationMetrics(registerer prometheus.Registerer, service string) *EvaluationMetrics {
	evaluationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rxcheck",
			Name:      "evaluation_total",
			Help:      "Total evaluations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	evaluationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rxcheck",
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end evaluation duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "outcome"},
	)
	evaluationInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rxcheck",
			Name:      "evaluation_in_flight",
			Help:      "Number of evaluations currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	reviewerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rxcheck",
			Name:      "reviewer_duration_seconds",
			Help:      "Reviewer call duration in seconds by reviewer and status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "reviewer", "status"},
	)
	humanReviewTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rxcheck",
			Name:      "human_review_total",
			Help:      "Total comparisons flagged for human review.",
		},
		[]string{"service"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rxcheck",
			Name:      "reconciliation_fallback_total",
			Help:      "Total comparisons produced without the comparison agent.",
		},
		[]string{"service"},
	)
	agreementTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rxcheck",
			Name:      "agreement_total",
			Help:      "Total comparisons by agreement level.",
		},
		[]string{"service", "level"},
	)

	registerer.MustRegister(
		evaluationTotal,
		evaluationDuration,
		evaluationInFlight,
		reviewerDuration,
		humanReviewTotal,
		fallbackTotal,
		agreementTotal,
	)

	return &EvaluationMetrics{
		service:            service,
		evaluationTotal:    evaluationTotal,
		evaluationDuration: evaluationDuration,
		evaluationInFlight: evaluationInFlight,
		reviewerDuration:   reviewerDuration,
		humanReviewTotal:   humanReviewTotal,
		fallbackTotal:      fallbackTotal,
		agreementTotal:     agreementTotal,
	}
}

func (m *EvaluationMetrics) EvaluationStarted() {
	m.evaluationInFlight.Inc()
}

func (m *EvaluationMetrics) EvaluationFinished(duration time.Duration, err error) {
	m.evaluationInFlight.Dec()
	outcome := outcomeLabel(err)
	m.evaluationTotal.WithLabelValues(m.service, outcome).Inc()
	m.evaluationDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *EvaluationMetrics) ReviewerFinished(reviewer string, duration time.Duration, err error) {
	if reviewer == "" {
		reviewer = "unknown"
	}
	m.reviewerDuration.WithLabelValues(m.service, reviewer, outcomeLabel(err)).Observe(duration.Seconds())
}

func (m *EvaluationMetrics) ComparisonFinished(result domain.ComparisonResult, degraded bool) {
	if degraded {
		m.fallbackTotal.WithLabelValues(m.service).Inc()
	}
	if result.NeedsHumanReview {
		m.humanReviewTotal.WithLabelValues(m.service).Inc()
	}
	level := string(result.Agreement)
	if level == "" {
		level = "unknown"
	}
	m.agreementTotal.WithLabelValues(m.service, level).Inc()
}

// outcomeLabel keeps label cardinality bounded by reporting the error kind,
// never the message.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrEvaluationNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return "malformed_response"
	case domain.IsKind(err, domain.ErrProviderCall):
		return "provider_error"
	default:
		return "error"
	}
}
