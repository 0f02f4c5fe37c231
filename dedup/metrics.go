/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dedup

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze deduplication behavior.
type MetricsCollector interface {
	// IncDuplicates increments the total number of suppressed duplicate events.
	IncDuplicates()

	// IncPassed increments the total number of first-seen events passed through.
	IncPassed()

	// IncSignatureErrors increments the total number of events passed through
	// because their signature could not be computed.
	IncSignatureErrors()

	// SetTrackedSignatures sets the current number of tracked signatures.
	SetTrackedSignatures(n int)
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

// PrometheusMetrics represents a Prometheus metrics for event deduplication.
type PrometheusMetrics struct {
	DuplicatesTotal      *prometheus.CounterVec
	PassedTotal          *prometheus.CounterVec
	SignatureErrorsTotal *prometheus.CounterVec
	TrackedSignatures    *prometheus.GaugeVec
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

	duplicatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "dedup_duplicate_events_total",
			Help:        "Number of events suppressed as duplicates.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	passedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "dedup_passed_events_total",
			Help:        "Number of first-seen events passed through.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	signatureErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "dedup_signature_errors_total",
			Help:        "Number of events passed through because signature computation failed.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	trackedSignatures := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "dedup_tracked_signatures",
			Help:        "Current number of tracked signatures.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	return &PrometheusMetrics{
		DuplicatesTotal:      duplicatesTotal,
		PassedTotal:          passedTotal,
		SignatureErrorsTotal: signatureErrorsTotal,
		TrackedSignatures:    trackedSignatures,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		DuplicatesTotal:      pm.DuplicatesTotal.MustCurryWith(labels),
		PassedTotal:          pm.PassedTotal.MustCurryWith(labels),
		SignatureErrorsTotal: pm.SignatureErrorsTotal.MustCurryWith(labels),
		TrackedSignatures:    pm.TrackedSignatures.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.DuplicatesTotal,
		pm.PassedTotal,
		pm.SignatureErrorsTotal,
		pm.TrackedSignatures,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.DuplicatesTotal)
	prometheus.Unregister(pm.PassedTotal)
	prometheus.Unregister(pm.SignatureErrorsTotal)
	prometheus.Unregister(pm.TrackedSignatures)
}

// IncDuplicates increments the total number of suppressed duplicate events.
func (pm *PrometheusMetrics) IncDuplicates() {
	pm.DuplicatesTotal.With(nil).Inc()
}

// IncPassed increments the total number of first-seen events passed through.
func (pm *PrometheusMetrics) IncPassed() {
	pm.PassedTotal.With(nil).Inc()
}

// IncSignatureErrors increments the total number of events passed through
// because their signature could not be computed.
func (pm *PrometheusMetrics) IncSignatureErrors() {
	pm.SignatureErrorsTotal.With(nil).Inc()
}

// SetTrackedSignatures sets the current number of tracked signatures.
func (pm *PrometheusMetrics) SetTrackedSignatures(n int) {
	pm.TrackedSignatures.With(nil).Set(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncDuplicates()           {}
func (disabledMetrics) IncPassed()               {}
func (disabledMetrics) IncSignatureErrors()      {}
func (disabledMetrics) SetTrackedSignatures(int) {}

var disabledMetricsCollector = disabledMetrics{}
