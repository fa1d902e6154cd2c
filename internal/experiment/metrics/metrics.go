package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the experiment module.
type Metrics struct {
	// Assignments served, split by source ("cache", "store", "computed")
	Assignments *prometheus.CounterVec

	// Conversion events accepted
	Conversions prometheus.Counter

	// Lifecycle transitions by target status
	Transitions *prometheus.CounterVec

	// Experiments stopped early by the sequential evaluator, by reason
	EarlyStops *prometheus.CounterVec

	// Full analysis latency including aggregate queries
	AnalysisLatency prometheus.Histogram
}

// New creates a Metrics instance with all experiment module metrics
// registered on the default registry.
func New() *Metrics {
	return &Metrics{
		Assignments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "splitlab_assignments_total",
			Help: "Total variant assignments served, by source",
		}, []string{"source"}),

		Conversions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "splitlab_conversions_total",
			Help: "Total conversion events accepted",
		}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "splitlab_experiment_transitions_total",
			Help: "Total experiment lifecycle transitions, by target status",
		}, []string{"status"}),

		EarlyStops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "splitlab_early_stops_total",
			Help: "Total experiments stopped by the sequential evaluator, by reason",
		}, []string{"reason"}),

		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitlab_analysis_duration_seconds",
			Help:    "Duration of a full analysis cycle including aggregate queries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementAssignment records one served assignment.
func (m *Metrics) IncrementAssignment(source string) {
	if m != nil {
		m.Assignments.WithLabelValues(source).Inc()
	}
}

// IncrementConversion records one accepted conversion event.
func (m *Metrics) IncrementConversion() {
	if m != nil {
		m.Conversions.Inc()
	}
}

// IncrementTransition records one lifecycle transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// IncrementEarlyStop records one early stop with its reason.
func (m *Metrics) IncrementEarlyStop(reason string) {
	if m != nil {
		m.EarlyStops.WithLabelValues(reason).Inc()
	}
}

// ObserveAnalysisLatency records the duration of one analysis cycle.
func (m *Metrics) ObserveAnalysisLatency(d time.Duration) {
	if m != nil {
		m.AnalysisLatency.Observe(d.Seconds())
	}
}
