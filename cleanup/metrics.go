/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cleanup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultPassDurationBuckets is default buckets into which observations of cleanup pass durations are counted.
var DefaultPassDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// MetricsCollector represents a collector of metrics to analyze cleanup passes.
type MetricsCollector interface {
	// IncPasses increments the total number of successfully finished cleanup passes.
	IncPasses()

	// IncTimeouts increments the total number of cleanup passes abandoned on deadline.
	IncTimeouts()

	// AddRemovedEntries increments the total number of entries removed by cleanup passes.
	AddRemovedEntries(int)

	// ObservePassDuration observes the duration of a finished cleanup pass.
	ObservePassDuration(d time.Duration)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// PassDurationBuckets is a list of buckets into which observations of cleanup pass durations are counted.
	PassDurationBuckets []float64

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents a Prometheus metrics for the cleanup manager.
type PrometheusMetrics struct {
	PassesTotal         *prometheus.CounterVec
	TimeoutsTotal       *prometheus.CounterVec
	RemovedEntriesTotal *prometheus.CounterVec
	PassDurations       *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	durBuckets := opts.PassDurationBuckets
	if durBuckets == nil {
		durBuckets = DefaultPassDurationBuckets
	}

	passesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cleanup_passes_total",
			Help:        "Number of successfully finished cleanup passes.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	timeoutsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cleanup_timeouts_total",
			Help:        "Number of cleanup passes abandoned on deadline.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	removedEntriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cleanup_removed_entries_total",
			Help:        "Number of entries removed by cleanup passes.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	passDurations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "cleanup_pass_duration_seconds",
			Help:        "A histogram of the cleanup pass durations.",
			Buckets:     durBuckets,
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		PassesTotal:         passesTotal,
		TimeoutsTotal:       timeoutsTotal,
		RemovedEntriesTotal: removedEntriesTotal,
		PassDurations:       passDurations,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		PassesTotal:         pm.PassesTotal.MustCurryWith(labels),
		TimeoutsTotal:       pm.TimeoutsTotal.MustCurryWith(labels),
		RemovedEntriesTotal: pm.RemovedEntriesTotal.MustCurryWith(labels),
		PassDurations:       pm.PassDurations.MustCurryWith(labels).(*prometheus.HistogramVec),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.PassesTotal,
		pm.TimeoutsTotal,
		pm.RemovedEntriesTotal,
		pm.PassDurations,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.PassesTotal)
	prometheus.Unregister(pm.TimeoutsTotal)
	prometheus.Unregister(pm.RemovedEntriesTotal)
	prometheus.Unregister(pm.PassDurations)
}

// IncPasses increments the total number of successfully finished cleanup passes.
func (pm *PrometheusMetrics) IncPasses() {
	pm.PassesTotal.With(nil).Inc()
}

// IncTimeouts increments the total number of cleanup passes abandoned on deadline.
func (pm *PrometheusMetrics) IncTimeouts() {
	pm.TimeoutsTotal.With(nil).Inc()
}

// AddRemovedEntries increments the total number of entries removed by cleanup passes.
func (pm *PrometheusMetrics) AddRemovedEntries(n int) {
	pm.RemovedEntriesTotal.With(nil).Add(float64(n))
}

// ObservePassDuration observes the duration of a finished cleanup pass.
func (pm *PrometheusMetrics) ObservePassDuration(d time.Duration) {
	pm.PassDurations.With(nil).Observe(d.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) IncPasses()                        {}
func (disabledMetrics) IncTimeouts()                      {}
func (disabledMetrics) AddRemovedEntries(int)             {}
func (disabledMetrics) ObservePassDuration(time.Duration) {}

var disabledMetricsCollector = disabledMetrics{}
