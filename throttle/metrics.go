/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze throttling behavior.
type MetricsCollector interface {
	// IncAllowed increments the total number of events that passed the rate limit
	// (including bypassed events).
	IncAllowed()

	// IncThrottled increments the total number of suppressed events.
	IncThrottled()

	// IncSampledThrough increments the total number of over-limit events
	// that were passed through by sampling.
	IncSampledThrough()

	// SetTrackedKeys sets the current number of tracked keys.
	SetTrackedKeys(n int)
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

// PrometheusMetrics represents a Prometheus metrics for event throttling.
type PrometheusMetrics struct {
	AllowedTotal        *prometheus.CounterVec
	ThrottledTotal      *prometheus.CounterVec
	SampledThroughTotal *prometheus.CounterVec
	TrackedKeys         *prometheus.GaugeVec
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

	allowedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "throttle_allowed_events_total",
			Help:        "Number of events that passed the rate limit (including bypassed events).",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	throttledTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "throttle_throttled_events_total",
			Help:        "Number of events suppressed by the rate limit.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	sampledThroughTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "throttle_sampled_through_events_total",
			Help:        "Number of over-limit events passed through by sampling.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	trackedKeys := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "throttle_tracked_keys",
			Help:        "Current number of keys tracked by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	return &PrometheusMetrics{
		AllowedTotal:        allowedTotal,
		ThrottledTotal:      throttledTotal,
		SampledThroughTotal: sampledThroughTotal,
		TrackedKeys:         trackedKeys,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AllowedTotal:        pm.AllowedTotal.MustCurryWith(labels),
		ThrottledTotal:      pm.ThrottledTotal.MustCurryWith(labels),
		SampledThroughTotal: pm.SampledThroughTotal.MustCurryWith(labels),
		TrackedKeys:         pm.TrackedKeys.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.AllowedTotal,
		pm.ThrottledTotal,
		pm.SampledThroughTotal,
		pm.TrackedKeys,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AllowedTotal)
	prometheus.Unregister(pm.ThrottledTotal)
	prometheus.Unregister(pm.SampledThroughTotal)
	prometheus.Unregister(pm.TrackedKeys)
}

// IncAllowed increments the total number of events that passed the rate limit.
func (pm *PrometheusMetrics) IncAllowed() {
	pm.AllowedTotal.With(nil).Inc()
}

// IncThrottled increments the total number of suppressed events.
func (pm *PrometheusMetrics) IncThrottled() {
	pm.ThrottledTotal.With(nil).Inc()
}

// IncSampledThrough increments the total number of over-limit events passed through by sampling.
func (pm *PrometheusMetrics) IncSampledThrough() {
	pm.SampledThroughTotal.With(nil).Inc()
}

// SetTrackedKeys sets the current number of tracked keys.
func (pm *PrometheusMetrics) SetTrackedKeys(n int) {
	pm.TrackedKeys.With(nil).Set(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAllowed()        {}
func (disabledMetrics) IncThrottled()      {}
func (disabledMetrics) IncSampledThrough() {}
func (disabledMetrics) SetTrackedKeys(int) {}

var disabledMetricsCollector = disabledMetrics{}
