package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the customer module.
type Metrics struct {
	CustomersRegistered    prometheus.Counter
	Operations             *prometheus.CounterVec
	OperationDuration      *prometheus.HistogramVec
	StatusTransitions      *prometheus.CounterVec
	CardValidationOutcomes *prometheus.CounterVec
	CacheLookups           *prometheus.CounterVec
}

// New registers the customer metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		CustomersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "customerhub_customers_registered_total",
			Help: "Total number of customers registered",
		}),
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "customerhub_customer_operations_total",
			Help: "Customer service operations by outcome (ok or error code)",
		}, []string{"operation", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "customerhub_customer_operation_duration_seconds",
			Help:    "Duration of customer service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "customerhub_customer_status_transitions_total",
			Help: "Lifecycle transitions by target status",
		}, []string{"status"}),
		CardValidationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "customerhub_card_validation_outcomes_total",
			Help: "External card validation outcomes applied",
		}, []string{"outcome"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "customerhub_customer_cache_lookups_total",
			Help: "Customer view cache lookups by result (hit or miss)",
		}, []string{"result"}),
	}
}

// ObserveOperation records one service call. outcome is "ok" or an error code.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRegistered() {
	m.CustomersRegistered.Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementValidationOutcome(approved bool) {
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	m.CardValidationOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
