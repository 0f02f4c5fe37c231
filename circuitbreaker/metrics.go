/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package circuitbreaker

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsLabelTransitionFrom = "from"
	metricsLabelTransitionTo   = "to"
)

// MetricsCollector represents a collector of metrics to analyze the breaker's behavior.
type MetricsCollector interface {
	// SetState sets the current state of the breaker.
	SetState(state State)

	// IncTransitions increments the total number of state transitions in the given direction.
	IncTransitions(from, to State)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents a Prometheus metrics for the circuit breaker.
type PrometheusMetrics struct {
	CurrentState     *prometheus.GaugeVec
	TransitionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	makeLabelNames := func(names ...string) []string {
		l := append(make([]string, 0, len(opts.CurriedLabelNames)+len(names)), opts.CurriedLabelNames...)
		return append(l, names...)
	}

	currentState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0 - closed, 1 - open, 2 - half-open).",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "circuit_breaker_transitions_total",
			Help:        "Number of circuit breaker state transitions.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(metricsLabelTransitionFrom, metricsLabelTransitionTo),
	)

	return &PrometheusMetrics{
		CurrentState:     currentState,
		TransitionsTotal: transitionsTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		CurrentState:     pm.CurrentState.MustCurryWith(labels),
		TransitionsTotal: pm.TransitionsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.CurrentState,
		pm.TransitionsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.CurrentState)
	prometheus.Unregister(pm.TransitionsTotal)
}

// SetState sets the current state of the breaker.
func (pm *PrometheusMetrics) SetState(state State) {
	pm.CurrentState.With(nil).Set(float64(state))
}

// IncTransitions increments the total number of state transitions in the given direction.
func (pm *PrometheusMetrics) IncTransitions(from, to State) {
	pm.TransitionsTotal.With(prometheus.Labels{
		metricsLabelTransitionFrom: from.String(),
		metricsLabelTransitionTo:   to.String(),
	}).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetState(State)            {}
func (disabledMetrics) IncTransitions(_, _ State) {}

var disabledMetricsCollector = disabledMetrics{}
