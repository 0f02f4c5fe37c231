/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package eventqueue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector represents a collector of metrics to analyze queueing and delivery behavior.
type MetricsCollector interface {
	// SetQueueSize sets the current number of buffered events.
	SetQueueSize(n int)

	// IncAccepted increments the total number of successfully enqueued events.
	IncAccepted()

	// IncDroppedQueueFull increments the total number of events rejected because the queue was full.
	IncDroppedQueueFull()

	// IncDroppedQueueClosed increments the total number of events rejected because the queue was closed.
	IncDroppedQueueClosed()

	// IncSampledOut increments the total number of events shed by the "sample" overflow strategy.
	IncSampledOut()

	// ObserveEnqueueWait observes the time an Enqueue call spent suspended
	// by the "block" overflow strategy.
	ObserveEnqueueWait(d time.Duration)

	// ObserveTimeInQueue observes the time an event spent in the queue before it was dequeued.
	ObserveTimeInQueue(d time.Duration)

	// IncDeliveredBatches increments the number of delivered batches
	// and adds batchSize to the number of delivered events.
	IncDeliveredBatches(batchSize int)

	// IncFailedBatches increments the number of batches dropped after delivery failed
	// and adds batchSize to the number of lost events.
	IncFailedBatches(batchSize int)

	// IncDeliveryRetries increments the total number of delivery retry attempts.
	IncDeliveryRetries()

	// ObserveDeliveryDuration observes the total time it took to deliver a batch,
	// retries and backoff delays included.
	ObserveDeliveryDuration(d time.Duration)
}

// Values of the "reason" label of the dropped events counter.
const (
	DropReasonQueueFull   = "queue_full"
	DropReasonQueueClosed = "queue_closed"
	DropReasonSampledOut  = "sampled_out"
)

const (
	batchStatusDelivered = "delivered"
	batchStatusFailed    = "failed"

	eventStatusDelivered = "delivered"
	eventStatusLost      = "lost"
)

// DefaultEnqueueWaitBuckets is default buckets for the enqueue wait histogram.
var DefaultEnqueueWaitBuckets = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5}

// DefaultTimeInQueueBuckets is default buckets for the time-in-queue histogram.
var DefaultTimeInQueueBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60}

// DefaultDeliveryDurationBuckets is default buckets for the batch delivery duration histogram.
var DefaultDeliveryDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// EnqueueWaitBuckets is a list of buckets for the enqueue wait histogram.
	// If it's empty, DefaultEnqueueWaitBuckets is used.
	EnqueueWaitBuckets []float64

	// TimeInQueueBuckets is a list of buckets for the time-in-queue histogram.
	// If it's empty, DefaultTimeInQueueBuckets is used.
	TimeInQueueBuckets []float64

	// DeliveryDurationBuckets is a list of buckets for the delivery duration histogram.
	// If it's empty, DefaultDeliveryDurationBuckets is used.
	DeliveryDurationBuckets []float64

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for event queueing and delivery.
type PrometheusMetrics struct {
	QueueSize        *prometheus.GaugeVec
	AcceptedTotal    *prometheus.CounterVec
	DroppedTotal     *prometheus.CounterVec
	EnqueueWait      *prometheus.HistogramVec
	TimeInQueue      *prometheus.HistogramVec
	BatchesTotal     *prometheus.CounterVec
	EventsTotal      *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
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

	enqueueWaitBuckets := opts.EnqueueWaitBuckets
	if len(enqueueWaitBuckets) == 0 {
		enqueueWaitBuckets = DefaultEnqueueWaitBuckets
	}
	timeInQueueBuckets := opts.TimeInQueueBuckets
	if len(timeInQueueBuckets) == 0 {
		timeInQueueBuckets = DefaultTimeInQueueBuckets
	}
	deliveryDurationBuckets := opts.DeliveryDurationBuckets
	if len(deliveryDurationBuckets) == 0 {
		deliveryDurationBuckets = DefaultDeliveryDurationBuckets
	}

	queueSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "event_queue_size",
			Help:        "Current number of events buffered in the queue.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	acceptedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "event_queue_accepted_events_total",
			Help:        "Number of events accepted into the queue.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	droppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "event_queue_dropped_events_total",
			Help:        "Number of events rejected at enqueue time, partitioned by reason.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames("reason"),
	)

	enqueueWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "event_queue_enqueue_wait_seconds",
			Help:        "Time producers spent suspended by the \"block\" overflow strategy.",
			Buckets:     enqueueWaitBuckets,
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	timeInQueue := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "event_queue_time_in_queue_seconds",
			Help:        "Time events spent in the queue before being dequeued.",
			Buckets:     timeInQueueBuckets,
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "event_delivery_batches_total",
			Help:        "Number of processed batches, partitioned by delivery status.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames("status"),
	)

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "event_delivery_events_total",
			Help:        "Number of events in processed batches, partitioned by delivery status.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames("status"),
	)

	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "event_delivery_retries_total",
			Help:        "Number of delivery retry attempts.",
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	deliveryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "event_delivery_duration_seconds",
			Help:        "Total time of delivering a batch to the sink, retries included.",
			Buckets:     deliveryDurationBuckets,
			ConstLabels: opts.ConstLabels,
		},
		makeLabelNames(),
	)

	return &PrometheusMetrics{
		QueueSize:        queueSize,
		AcceptedTotal:    acceptedTotal,
		DroppedTotal:     droppedTotal,
		EnqueueWait:      enqueueWait,
		TimeInQueue:      timeInQueue,
		BatchesTotal:     batchesTotal,
		EventsTotal:      eventsTotal,
		RetriesTotal:     retriesTotal,
		DeliveryDuration: deliveryDuration,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		QueueSize:        pm.QueueSize.MustCurryWith(labels),
		AcceptedTotal:    pm.AcceptedTotal.MustCurryWith(labels),
		DroppedTotal:     pm.DroppedTotal.MustCurryWith(labels),
		EnqueueWait:      pm.EnqueueWait.MustCurryWith(labels).(*prometheus.HistogramVec),
		TimeInQueue:      pm.TimeInQueue.MustCurryWith(labels).(*prometheus.HistogramVec),
		BatchesTotal:     pm.BatchesTotal.MustCurryWith(labels),
		EventsTotal:      pm.EventsTotal.MustCurryWith(labels),
		RetriesTotal:     pm.RetriesTotal.MustCurryWith(labels),
		DeliveryDuration: pm.DeliveryDuration.MustCurryWith(labels).(*prometheus.HistogramVec),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.QueueSize,
		pm.AcceptedTotal,
		pm.DroppedTotal,
		pm.EnqueueWait,
		pm.TimeInQueue,
		pm.BatchesTotal,
		pm.EventsTotal,
		pm.RetriesTotal,
		pm.DeliveryDuration,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.QueueSize)
	prometheus.Unregister(pm.AcceptedTotal)
	prometheus.Unregister(pm.DroppedTotal)
	prometheus.Unregister(pm.EnqueueWait)
	prometheus.Unregister(pm.TimeInQueue)
	prometheus.Unregister(pm.BatchesTotal)
	prometheus.Unregister(pm.EventsTotal)
	prometheus.Unregister(pm.RetriesTotal)
	prometheus.Unregister(pm.DeliveryDuration)
}

// SetQueueSize sets the current number of buffered events.
func (pm *PrometheusMetrics) SetQueueSize(n int) {
	pm.QueueSize.With(nil).Set(float64(n))
}

// IncAccepted increments the total number of successfully enqueued events.
func (pm *PrometheusMetrics) IncAccepted() {
	pm.AcceptedTotal.With(nil).Inc()
}

// IncDroppedQueueFull increments the total number of events rejected because the queue was full.
func (pm *PrometheusMetrics) IncDroppedQueueFull() {
	pm.DroppedTotal.With(prometheus.Labels{"reason": DropReasonQueueFull}).Inc()
}

// IncDroppedQueueClosed increments the total number of events rejected because the queue was closed.
func (pm *PrometheusMetrics) IncDroppedQueueClosed() {
	pm.DroppedTotal.With(prometheus.Labels{"reason": DropReasonQueueClosed}).Inc()
}

// IncSampledOut increments the total number of events shed by the "sample" overflow strategy.
func (pm *PrometheusMetrics) IncSampledOut() {
	pm.DroppedTotal.With(prometheus.Labels{"reason": DropReasonSampledOut}).Inc()
}

// ObserveEnqueueWait observes the time an Enqueue call spent suspended by the "block" overflow strategy.
func (pm *PrometheusMetrics) ObserveEnqueueWait(d time.Duration) {
	pm.EnqueueWait.With(nil).Observe(d.Seconds())
}

// ObserveTimeInQueue observes the time an event spent in the queue before it was dequeued.
func (pm *PrometheusMetrics) ObserveTimeInQueue(d time.Duration) {
	pm.TimeInQueue.With(nil).Observe(d.Seconds())
}

// IncDeliveredBatches increments delivered batches and events counters.
func (pm *PrometheusMetrics) IncDeliveredBatches(batchSize int) {
	pm.BatchesTotal.With(prometheus.Labels{"status": batchStatusDelivered}).Inc()
	pm.EventsTotal.With(prometheus.Labels{"status": eventStatusDelivered}).Add(float64(batchSize))
}

// IncFailedBatches increments failed batches and lost events counters.
func (pm *PrometheusMetrics) IncFailedBatches(batchSize int) {
	pm.BatchesTotal.With(prometheus.Labels{"status": batchStatusFailed}).Inc()
	pm.EventsTotal.With(prometheus.Labels{"status": eventStatusLost}).Add(float64(batchSize))
}

// IncDeliveryRetries increments the total number of delivery retry attempts.
func (pm *PrometheusMetrics) IncDeliveryRetries() {
	pm.RetriesTotal.With(nil).Inc()
}

// ObserveDeliveryDuration observes the total time of delivering a batch to the sink.
func (pm *PrometheusMetrics) ObserveDeliveryDuration(d time.Duration) {
	pm.DeliveryDuration.With(nil).Observe(d.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) SetQueueSize(int)                      {}
func (disabledMetrics) IncAccepted()                          {}
func (disabledMetrics) IncDroppedQueueFull()                  {}
func (disabledMetrics) IncDroppedQueueClosed()                {}
func (disabledMetrics) IncSampledOut()                        {}
func (disabledMetrics) ObserveEnqueueWait(time.Duration)      {}
func (disabledMetrics) ObserveTimeInQueue(time.Duration)      {}
func (disabledMetrics) IncDeliveredBatches(int)               {}
func (disabledMetrics) IncFailedBatches(int)                  {}
func (disabledMetrics) IncDeliveryRetries()                   {}
func (disabledMetrics) ObserveDeliveryDuration(time.Duration) {}

var disabledMetricsCollector = disabledMetrics{}
