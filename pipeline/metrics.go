/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-eventkit/circuitbreaker"
	"github.com/acronis/go-eventkit/cleanup"
	"github.com/acronis/go-eventkit/dedup"
	"github.com/acronis/go-eventkit/eventqueue"
	"github.com/acronis/go-eventkit/internal/libinfo"
	"github.com/acronis/go-eventkit/lrucache"
	"github.com/acronis/go-eventkit/mask"
	"github.com/acronis/go-eventkit/throttle"
)

// cleanupTargetLabel is a label distinguishing cleanup metrics
// of the deduplication and throttling stores.
const cleanupTargetLabel = "target"

const (
	cleanupTargetDedup    = "dedup"
	cleanupTargetThrottle = "throttle"
)

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

// PrometheusMetrics aggregates Prometheus metrics of all pipeline stages.
// Cleanup metrics carry an additional "target" label ("dedup" or "throttle")
// that the pipeline curries itself.
type PrometheusMetrics struct {
	Queue          *eventqueue.PrometheusMetrics
	Mask           *mask.PrometheusMetrics
	Dedup          *dedup.PrometheusMetrics
	DedupCache     *lrucache.PrometheusMetrics
	Throttle       *throttle.PrometheusMetrics
	CircuitBreaker *circuitbreaker.PrometheusMetrics
	Cleanup        *cleanup.PrometheusMetrics
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	constLabels := libinfo.AddPrometheusLibVersionLabel(opts.ConstLabels)

	cleanupLabelNames := make([]string, 0, len(opts.CurriedLabelNames)+1)
	cleanupLabelNames = append(cleanupLabelNames, opts.CurriedLabelNames...)
	cleanupLabelNames = append(cleanupLabelNames, cleanupTargetLabel)

	return &PrometheusMetrics{
		Queue: eventqueue.NewPrometheusMetricsWithOpts(eventqueue.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: opts.CurriedLabelNames,
		}),
		Mask: mask.NewPrometheusMetricsWithOpts(mask.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: opts.CurriedLabelNames,
		}),
		Dedup: dedup.NewPrometheusMetricsWithOpts(dedup.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: opts.CurriedLabelNames,
		}),
		DedupCache: lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: opts.CurriedLabelNames,
		}),
		Throttle: throttle.NewPrometheusMetricsWithOpts(throttle.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: opts.CurriedLabelNames,
		}),
		CircuitBreaker: circuitbreaker.NewPrometheusMetricsWithOpts(circuitbreaker.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: opts.CurriedLabelNames,
		}),
		Cleanup: cleanup.NewPrometheusMetricsWithOpts(cleanup.PrometheusMetricsOpts{
			Namespace:         opts.Namespace,
			ConstLabels:       constLabels,
			CurriedLabelNames: cleanupLabelNames,
		}),
	}
}

// MustCurryWith curries the metrics of all stages with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		Queue:          pm.Queue.MustCurryWith(labels),
		Mask:           pm.Mask.MustCurryWith(labels),
		Dedup:          pm.Dedup.MustCurryWith(labels),
		DedupCache:     pm.DedupCache.MustCurryWith(labels),
		Throttle:       pm.Throttle.MustCurryWith(labels),
		CircuitBreaker: pm.CircuitBreaker.MustCurryWith(labels),
		Cleanup:        pm.Cleanup.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collectors of all stages in Prometheus
// and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	pm.Queue.MustRegister()
	pm.Mask.MustRegister()
	pm.Dedup.MustRegister()
	pm.DedupCache.MustRegister()
	pm.Throttle.MustRegister()
	pm.CircuitBreaker.MustRegister()
	pm.Cleanup.MustRegister()
}

// Unregister cancels registration of metrics collectors of all stages in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	pm.Queue.Unregister()
	pm.Mask.Unregister()
	pm.Dedup.Unregister()
	pm.DedupCache.Unregister()
	pm.Throttle.Unregister()
	pm.CircuitBreaker.Unregister()
	pm.Cleanup.Unregister()
}
