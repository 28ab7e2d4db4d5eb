package metrics

import "github.com/prometheus/client_golang/prometheus"

// ResilienceMetrics counts retries and circuit breaker transitions of
// outbound calls.
type ResilienceMetrics struct {
	service string

	retryTotal       *prometheus.CounterVec
	stateChangeTotal *prometheus.CounterVec
}

func NewResilienceMetrics(registerer prometheus.Registerer, service string) *ResilienceMetrics {
	retryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rxcheck",
			Subsystem: "outbound",
			Name:      "retries_total",
			Help:      "Total retried outbound calls by operation.",
		},
		[]string{"service", "operation"},
	)
	stateChangeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rxcheck",
			Subsystem: "outbound",
			Name:      "breaker_transitions_total",
			Help:      "Total circuit breaker transitions by operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)
	registerer.MustRegister(retryTotal, stateChangeTotal)

	return &ResilienceMetrics{
		service:          service,
		retryTotal:       retryTotal,
		stateChangeTotal: stateChangeTotal,
	}
}

func (m *ResilienceMetrics) RecordRetry(operation string) {
	m.retryTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *ResilienceMetrics) RecordStateChange(operation, to string) {
	m.stateChangeTotal.WithLabelValues(m.service, operation, to).Inc()
}
