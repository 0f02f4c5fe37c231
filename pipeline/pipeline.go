/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-eventkit/circuitbreaker"
	"github.com/acronis/go-eventkit/cleanup"
	"github.com/acronis/go-eventkit/dedup"
	"github.com/acronis/go-eventkit/event"
	"github.com/acronis/go-eventkit/eventqueue"
	"github.com/acronis/go-eventkit/log"
	"github.com/acronis/go-eventkit/lrucache"
	"github.com/acronis/go-eventkit/mask"
	"github.com/acronis/go-eventkit/service"
	"github.com/acronis/go-eventkit/throttle"
)

// Processor transforms or suppresses an event on its way to the queue.
// Implementations must be safe for concurrent use.
type Processor interface {
	// Process returns the event to pass down the pipeline, possibly modified.
	// A nil result suppresses the event.
	Process(ev event.Event) event.Event
}

// ProcessorFunc is an adapter to allow the use of ordinary functions as Processor.
type ProcessorFunc func(ev event.Event) event.Event

// Process implements the Processor interface.
func (f ProcessorFunc) Process(ev event.Event) event.Event {
	return f(ev)
}

// SubmitResult describes the fate of a submitted event.
type SubmitResult int

const (
	// SubmitAccepted means the event was buffered and will be delivered to the sink.
	SubmitAccepted SubmitResult = iota

	// SubmitSuppressed means one of the processing stages suppressed the event,
	// as a duplicate or an over-limit one.
	SubmitSuppressed

	// SubmitDropped means the queue rejected the event, because of an overflow
	// or because the pipeline is stopped.
	SubmitDropped
)

// String implements the fmt.Stringer interface.
func (r SubmitResult) String() string {
	switch r {
	case SubmitAccepted:
		return "accepted"
	case SubmitSuppressed:
		return "suppressed"
	case SubmitDropped:
		return "dropped"
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// Pipeline conveys submitted events through the processing stages
// (masking, deduplication, throttling) into a bounded queue, from which
// a background worker delivers them to the sink in batches. The sink may be
// guarded with a circuit breaker and an egress rate limiter.
//
// The pipeline implements the service.Unit interface: Start runs the delivery
// worker together with the housekeeping workers (periodic cleanup of the
// deduplication and throttling state, stats logging) and blocks until Stop.
// Events may be submitted before the pipeline is started, they are buffered in the queue.
type Pipeline struct {
	processors []Processor

	queue  *eventqueue.Queue
	worker *eventqueue.Worker

	// breaker is non-nil only when the circuit breaker is enabled, same for the stages below.
	breaker       *circuitbreaker.CircuitBreaker
	dedupStage    *dedup.Processor
	throttleStage *throttle.Processor

	units *service.CompositeUnit

	logger      log.FieldLogger
	promMetrics *PrometheusMetrics
}

var _ service.Unit = (*Pipeline)(nil)
var _ service.MetricsRegisterer = (*Pipeline)(nil)

// Opts represents options for the Pipeline.
type Opts struct {
	// Logger is used for logging the work of all pipeline stages.
	// No logging is done if it's not specified.
	Logger log.FieldLogger

	// Metrics is an aggregate of Prometheus metrics of all pipeline stages.
	// It's registered and unregistered in the MustRegisterMetrics/UnregisterMetrics methods.
	// If not specified, metrics collecting will be disabled.
	Metrics *PrometheusMetrics

	// ExtraProcessors are appended after the built-in stages and run
	// right before the event is queued.
	ExtraProcessors []Processor
}

// New creates a new Pipeline delivering submitted events to the sink.
func New(cfg *Config, sink eventqueue.Sink) (*Pipeline, error) {
	return NewWithOpts(cfg, sink, Opts{})
}

// NewWithOpts is a more configurable version of the Pipeline creation.
// Configuration is validated, and all errors are reported here, never at Submit time.
func NewWithOpts(cfg *Config, sink eventqueue.Sink, opts Opts) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	p := &Pipeline{logger: logger, promMetrics: opts.Metrics}

	deliverySink, err := p.makeDeliverySink(cfg, sink)
	if err != nil {
		return nil, err
	}

	var queueMetrics eventqueue.MetricsCollector
	if p.promMetrics != nil {
		queueMetrics = p.promMetrics.Queue
	}
	if p.queue, err = eventqueue.NewQueueWithOpts(&cfg.Queue, eventqueue.QueueOpts{
		MetricsCollector: queueMetrics,
	}); err != nil {
		return nil, fmt.Errorf("create queue: %w", err)
	}
	if p.worker, err = eventqueue.NewWorkerWithOpts(p.queue, deliverySink, &cfg.Queue, eventqueue.WorkerOpts{
		Logger:           logger,
		MetricsCollector: queueMetrics,
	}); err != nil {
		return nil, fmt.Errorf("create delivery worker: %w", err)
	}

	units := []service.Unit{p.worker.Unit(0)}

	stageUnits, err := p.buildStages(cfg, opts)
	if err != nil {
		return nil, err
	}
	units = append(units, stageUnits...)

	statsInterval := time.Duration(cfg.StatsLogInterval)
	if statsInterval == 0 {
		statsInterval = DefaultStatsLogInterval
	}
	statsWorker := service.NewPeriodicWorker(service.WorkerFunc(p.logStats), statsInterval, logger)
	units = append(units, service.NewWorkerUnit(statsWorker))

	p.units = service.NewCompositeUnit(units...)
	return p, nil
}

// makeDeliverySink wraps the sink with the configured delivery guards.
// The circuit breaker is the outermost one: while it's open, deliveries fail fast
// without spending the egress rate budget.
func (p *Pipeline) makeDeliverySink(cfg *Config, sink eventqueue.Sink) (eventqueue.Sink, error) {
	var err error
	if cfg.SinkRateLimit.Enabled {
		if sink, err = eventqueue.NewRateLimitingSinkWithOpts(sink, cfg.SinkRateLimit.Rate, eventqueue.RateLimitingSinkOpts{
			Burst:       cfg.SinkRateLimit.Burst,
			WaitTimeout: time.Duration(cfg.SinkRateLimit.WaitTimeout),
		}); err != nil {
			return nil, fmt.Errorf("create rate limiting sink: %w", err)
		}
	}
	if cfg.CircuitBreaker.Enabled {
		var breakerMetrics circuitbreaker.MetricsCollector
		if p.promMetrics != nil {
			breakerMetrics = p.promMetrics.CircuitBreaker
		}
		failureThreshold := cfg.CircuitBreaker.FailureThreshold
		if failureThreshold == 0 {
			failureThreshold = DefaultCircuitBreakerFailureThreshold
		}
		recoveryTimeout := time.Duration(cfg.CircuitBreaker.RecoveryTimeout)
		if recoveryTimeout == 0 {
			recoveryTimeout = DefaultCircuitBreakerRecoveryTimeout
		}
		if p.breaker, err = circuitbreaker.NewWithOpts(failureThreshold, recoveryTimeout, circuitbreaker.Opts{
			Logger:           p.logger,
			MetricsCollector: breakerMetrics,
		}); err != nil {
			return nil, fmt.Errorf("create circuit breaker: %w", err)
		}
		if sink, err = eventqueue.NewBreakerSink(sink, p.breaker); err != nil {
			return nil, fmt.Errorf("create breaker sink: %w", err)
		}
	}
	return sink, nil
}

// buildStages creates the enabled processing stages in their fixed order
// (masking, deduplication, throttling) and the cleanup managers for the stages
// that accumulate state. Each stage logs under a prefix naming it.
func (p *Pipeline) buildStages(cfg *Config, opts Opts) ([]service.Unit, error) {
	var units []service.Unit

	if cfg.Mask.Enabled {
		var maskMetrics mask.MetricsCollector
		if p.promMetrics != nil {
			maskMetrics = p.promMetrics.Mask
		}
		maskStage, err := mask.NewWithOpts(&cfg.Mask.Config, mask.Opts{
			Logger:           log.NewPrefixedLogger(p.logger, "mask: "),
			MetricsCollector: maskMetrics,
		})
		if err != nil {
			return nil, fmt.Errorf("create masking stage: %w", err)
		}
		p.processors = append(p.processors, maskStage)
	}

	if cfg.Dedup.Enabled {
		var dedupMetrics dedup.MetricsCollector
		var cacheMetrics lrucache.MetricsCollector
		if p.promMetrics != nil {
			dedupMetrics = p.promMetrics.Dedup
			cacheMetrics = p.promMetrics.DedupCache
		}
		dedupStage, err := dedup.NewWithOpts(&cfg.Dedup.Config, dedup.Opts{
			Logger:                log.NewPrefixedLogger(p.logger, "dedup: "),
			MetricsCollector:      dedupMetrics,
			CacheMetricsCollector: cacheMetrics,
		})
		if err != nil {
			return nil, fmt.Errorf("create deduplication stage: %w", err)
		}
		p.dedupStage = dedupStage
		p.processors = append(p.processors, dedupStage)

		manager, err := p.newCleanupManager(cfg, dedupStage, cleanupTargetDedup, dedupStage.Utilization)
		if err != nil {
			return nil, fmt.Errorf("create deduplication cleanup manager: %w", err)
		}
		units = append(units, service.NewWorkerUnit(manager))
	}

	if cfg.Throttle.Enabled {
		var throttleMetrics throttle.MetricsCollector
		if p.promMetrics != nil {
			throttleMetrics = p.promMetrics.Throttle
		}
		throttleStage, err := throttle.NewWithOpts(&cfg.Throttle.Config, throttle.Opts{
			Logger:           log.NewPrefixedLogger(p.logger, "throttle: "),
			MetricsCollector: throttleMetrics,
		})
		if err != nil {
			return nil, fmt.Errorf("create throttling stage: %w", err)
		}
		p.throttleStage = throttleStage
		p.processors = append(p.processors, throttleStage)

		manager, err := p.newCleanupManager(cfg, throttleStage, cleanupTargetThrottle, throttleStage.Utilization)
		if err != nil {
			return nil, fmt.Errorf("create throttling cleanup manager: %w", err)
		}
		units = append(units, service.NewWorkerUnit(manager))
	}

	p.processors = append(p.processors, opts.ExtraProcessors...)
	return units, nil
}

func (p *Pipeline) newCleanupManager(
	cfg *Config, target cleanup.Target, targetName string, utilization func() float64,
) (*cleanup.Manager, error) {
	var cleanupMetrics cleanup.MetricsCollector
	if p.promMetrics != nil {
		cleanupMetrics = p.promMetrics.Cleanup.MustCurryWith(prometheus.Labels{cleanupTargetLabel: targetName})
	}
	return cleanup.NewWithOpts(target, cleanup.Opts{
		Interval:         time.Duration(cfg.Cleanup.Interval),
		ThresholdRatio:   cfg.Cleanup.ThresholdRatio,
		Utilization:      utilization,
		MaxDuration:      time.Duration(cfg.Cleanup.MaxDuration),
		Logger:           p.logger.With(log.String("cleanup_target", targetName)),
		MetricsCollector: cleanupMetrics,
	})
}

// Submit pushes an event into the pipeline and reports its fate.
//
// The event passes the enabled stages in order, each may modify or suppress it.
// Producers must not rely on the submitted event staying untouched after Submit,
// the stages work on a copy only when they change field values.
// Submit doesn't wait for the delivery and never fails because of sink errors.
// It may block only when the queue is full and the "block" overflow strategy is configured.
func (p *Pipeline) Submit(ev event.Event) SubmitResult {
	for _, proc := range p.processors {
		if ev = proc.Process(ev); ev == nil {
			return SubmitSuppressed
		}
	}
	if !p.queue.Enqueue(ev) {
		return SubmitDropped
	}
	return SubmitAccepted
}

// Start launches the delivery worker and the housekeeping workers,
// and blocks until the pipeline is stopped.
// Implements the service.Unit interface.
func (p *Pipeline) Start(fatalError chan<- error) {
	p.units.Start(fatalError)
}

// Stop stops the pipeline. The graceful stop closes the queue and waits until
// the buffered events are flushed to the sink.
// Implements the service.Unit interface.
func (p *Pipeline) Stop(gracefully bool) error {
	return p.units.Stop(gracefully)
}

// MustRegisterMetrics registers metrics of all pipeline stages in Prometheus
// and panics if any error occurs. Implements the service.MetricsRegisterer interface.
func (p *Pipeline) MustRegisterMetrics() {
	if p.promMetrics != nil {
		p.promMetrics.MustRegister()
	}
}

// UnregisterMetrics unregisters metrics of all pipeline stages in Prometheus.
// Implements the service.MetricsRegisterer interface.
func (p *Pipeline) UnregisterMetrics() {
	if p.promMetrics != nil {
		p.promMetrics.Unregister()
	}
}

// QueueLen returns the number of events waiting in the queue.
func (p *Pipeline) QueueLen() int {
	return p.queue.Len()
}

func (p *Pipeline) logStats(_ context.Context) error {
	fields := make([]log.Field, 0, 6)
	fields = append(fields,
		log.Int("queue_len", p.queue.Len()),
		log.Int("queue_capacity", p.queue.Capacity()),
		log.String("worker_state", p.worker.State().String()),
	)
	if p.dedupStage != nil {
		fields = append(fields, log.Float64("dedup_utilization", p.dedupStage.Utilization()))
	}
	if p.throttleStage != nil {
		fields = append(fields, log.Float64("throttle_utilization", p.throttleStage.Utilization()))
	}
	if p.breaker != nil {
		fields = append(fields, log.String("circuit_breaker_state", p.breaker.State().String()))
	}
	p.logger.Info("event pipeline stats", fields...)
	return nil
}
