/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package mask

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze masking behavior.
type MetricsCollector interface {
	// AddMaskedFields adds the number of event fields in which secret values were masked.
	AddMaskedFields(n int)
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

// PrometheusMetrics represents a Prometheus metrics for secret masking.
type PrometheusMetrics struct {
	MaskedFieldsTotal *prometheus.CounterVec
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

	maskedFieldsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "mask_masked_fields_total",
			Help:        "Number of event fields in which secret values were masked.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	return &PrometheusMetrics{
		MaskedFieldsTotal: maskedFieldsTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		MaskedFieldsTotal: pm.MaskedFieldsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.MaskedFieldsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.MaskedFieldsTotal)
}

// AddMaskedFields adds the number of event fields in which secret values were masked.
func (pm *PrometheusMetrics) AddMaskedFields(n int) {
	pm.MaskedFieldsTotal.With(nil).Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) AddMaskedFields(int) {}

var disabledMetricsCollector = disabledMetrics{}
