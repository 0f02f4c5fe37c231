/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector is a collector of the cache usage metrics.
// LRUCache calls it on every lookup and eviction, so implementations must be cheap.
type MetricsCollector interface {
	// SetAmount sets the total number of entries in the cache.
	SetAmount(int)

	// IncHits increments the total number of successfully found keys in the cache.
	IncHits()

	// IncMisses increments the total number of not found keys in the cache.
	IncMisses()

	// AddEvictions increments the total number of evicted entries.
	AddEvictions(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is prepended to all metric names.
	Namespace string

	// ConstLabels are applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames lists label names to be bound later via MustCurryWith.
	// A collector constructed with a non-empty list panics on use
	// until MustCurryWith has been called with values for all of them.
	CurriedLabelNames []string
}

// PrometheusMetrics is a MetricsCollector exposing the cache usage as Prometheus metrics.
type PrometheusMetrics struct {
	EntriesAmount  *prometheus.GaugeVec
	HitsTotal      *prometheus.CounterVec
	MissesTotal    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   opts.Namespace,
				Name:        "cache_entries_amount",
				Help:        "Current number of entries in the cache.",
				ConstLabels: opts.ConstLabels,
			},
			opts.CurriedLabelNames,
		),
		HitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "cache_hits_total",
				Help:        "Total number of cache hits.",
				ConstLabels: opts.ConstLabels,
			},
			opts.CurriedLabelNames,
		),
		MissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "cache_misses_total",
				Help:        "Total number of cache misses.",
				ConstLabels: opts.ConstLabels,
			},
			opts.CurriedLabelNames,
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "cache_evictions_total",
				Help:        "Total number of evicted entries.",
				ConstLabels: opts.ConstLabels,
			},
			opts.CurriedLabelNames,
		),
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
// The pipeline uses it to reuse one set of collectors for several caches.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount:  pm.EntriesAmount.MustCurryWith(labels),
		HitsTotal:      pm.HitsTotal.MustCurryWith(labels),
		MissesTotal:    pm.MissesTotal.MustCurryWith(labels),
		EvictionsTotal: pm.EvictionsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.EntriesAmount,
		pm.HitsTotal,
		pm.MissesTotal,
		pm.EvictionsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.EntriesAmount)
	prometheus.Unregister(pm.HitsTotal)
	prometheus.Unregister(pm.MissesTotal)
	prometheus.Unregister(pm.EvictionsTotal)
}

// SetAmount sets the total number of entries in the cache.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.With(nil).Set(float64(amount))
}

// IncHits increments the total number of successfully found keys in the cache.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.With(nil).Inc()
}

// IncMisses increments the total number of not found keys in the cache.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.With(nil).Inc()
}

// AddEvictions increments the total number of evicted entries.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.With(nil).Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)    {}
func (disabledMetrics) IncHits()         {}
func (disabledMetrics) IncMisses()       {}
func (disabledMetrics) AddEvictions(int) {}

var disabledMetricsCollector = disabledMetrics{}
