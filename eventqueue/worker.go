/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package eventqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/acronis/go-eventkit/circuitbreaker"
	"github.com/acronis/go-eventkit/event"
	"github.com/acronis/go-eventkit/log"
	"github.com/acronis/go-eventkit/retry"
	"github.com/acronis/go-eventkit/service"
)

// WorkerState represents a lifecycle state of the delivery worker.
type WorkerState int32

// Worker lifecycle states. Transitions are one-way:
// NotStarted -> Running -> Draining -> Stopped.
const (
	WorkerStateNotStarted WorkerState = iota
	WorkerStateRunning
	WorkerStateDraining
	WorkerStateStopped
)

// String implements the fmt.Stringer interface.
func (s WorkerState) String() string {
	switch s {
	case WorkerStateNotStarted:
		return "not_started"
	case WorkerStateRunning:
		return "running"
	case WorkerStateDraining:
		return "draining"
	case WorkerStateStopped:
		return "stopped"
	}
	return fmt.Sprintf("unknown(%d)", int32(s))
}

// Errors returned by the Worker lifecycle methods.
var (
	ErrAlreadyStarted      = errors.New("delivery worker is already started")
	ErrAlreadyStopped      = errors.New("delivery worker is already stopped")
	ErrStopTimeoutExceeded = errors.New("delivery worker stop timeout exceeded")
)

// DefaultStopTimeout is a default value of WorkerOpts.StopTimeout.
const DefaultStopTimeout = 5 * time.Second

// Worker consumes the queue and delivers events to the sink in batches.
// A batch is shipped when it grows to the configured size or when the batch
// timeout fires after the first event, whichever happens earlier.
// Failed batches are retried according to the retry policy and dropped
// after the attempts are exhausted. Delivery errors never reach producers.
type Worker struct {
	queue *Queue
	sink  Sink

	batchSize    int
	batchTimeout time.Duration
	retryPolicy  retry.Policy
	stopTimeout  time.Duration

	state atomic.Int32
	done  chan struct{}

	deliveryCtx    context.Context
	cancelDelivery context.CancelFunc

	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// WorkerOpts represents an options for Worker.
type WorkerOpts struct {
	// Logger is used for logging delivery progress and failures.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics.
	MetricsCollector MetricsCollector

	// StopTimeout bounds the draining phase when the worker is stopped via Run.
	// By default, DefaultStopTimeout is used.
	StopTimeout time.Duration
}

// NewWorker creates a new Worker delivering events from the queue to the sink.
func NewWorker(queue *Queue, sink Sink, cfg *Config) (*Worker, error) {
	return NewWorkerWithOpts(queue, sink, cfg, WorkerOpts{})
}

// NewWorkerWithOpts creates a new Worker with the provided options.
// The worker is not consuming the queue until Start or Run is called.
func NewWorkerWithOpts(queue *Queue, sink Sink, cfg *Config, opts WorkerOpts) (*Worker, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	batchTimeout := time.Duration(cfg.BatchTimeout)
	if batchTimeout == 0 {
		batchTimeout = DefaultBatchTimeout
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout == 0 {
		stopTimeout = DefaultStopTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}

	deliveryCtx, cancelDelivery := context.WithCancel(context.Background())
	return &Worker{
		queue:            queue,
		sink:             sink,
		batchSize:        batchSize,
		batchTimeout:     batchTimeout,
		retryPolicy:      makeRetryPolicy(cfg),
		stopTimeout:      stopTimeout,
		done:             make(chan struct{}),
		deliveryCtx:      deliveryCtx,
		cancelDelivery:   cancelDelivery,
		logger:           logger,
		metricsCollector: metricsCollector,
	}, nil
}

func makeRetryPolicy(cfg *Config) retry.Policy {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries == NoRetries {
		// Deliver in a single attempt. The ready-made policies treat zero attempts as "unlimited".
		return retry.PolicyFunc(func() backoff.BackOff { return &backoff.StopBackOff{} })
	}
	retryDelay := time.Duration(cfg.RetryDelay)
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	if cfg.RetryPolicy == RetryPolicyExponential {
		return retry.NewExponentialBackoffPolicy(retryDelay, maxRetries)
	}
	return retry.NewConstantBackoffPolicy(retryDelay, maxRetries)
}

// State returns the current lifecycle state of the worker.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Start launches the consuming goroutine.
// The second call returns ErrAlreadyStarted, a call after Stop returns ErrAlreadyStopped.
func (w *Worker) Start() error {
	if !w.state.CompareAndSwap(int32(WorkerStateNotStarted), int32(WorkerStateRunning)) {
		if w.State() == WorkerStateRunning {
			return ErrAlreadyStarted
		}
		return ErrAlreadyStopped
	}
	w.logger.Info("event delivery worker started",
		log.Int("batch_size", w.batchSize), log.Duration("batch_timeout", w.batchTimeout))
	go w.loop()
	return nil
}

// Stop closes the queue, waits until the buffered events are flushed to the sink
// and stops the worker. When the timeout fires first, the in-flight delivery is
// canceled, the not yet delivered events are dropped, and ErrStopTimeoutExceeded
// is returned. Stopping a worker that was never started just closes the queue.
// The second Stop returns ErrAlreadyStopped.
func (w *Worker) Stop(timeout time.Duration) error {
	if w.state.CompareAndSwap(int32(WorkerStateNotStarted), int32(WorkerStateStopped)) {
		w.cancelDelivery()
		w.queue.Close()
		return nil
	}
	if !w.state.CompareAndSwap(int32(WorkerStateRunning), int32(WorkerStateDraining)) {
		return ErrAlreadyStopped
	}

	w.logger.Info("event delivery worker is draining", log.Duration("timeout", timeout))
	w.queue.Close()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-w.done:
		w.cancelDelivery()
		w.state.Store(int32(WorkerStateStopped))
		w.logger.Info("event delivery worker stopped")
		return nil
	case <-deadline.C:
		w.cancelDelivery()
		w.state.Store(int32(WorkerStateStopped))
		w.logger.Error("event delivery worker stop timeout exceeded, canceling in-flight delivery",
			log.Int("events_left", w.queue.Len()))
		return ErrStopTimeoutExceeded
	}
}

// Run implements the service.Worker interface. It starts the worker, waits for
// the context cancellation and stops, bounding the draining phase with the
// configured stop timeout.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-w.done:
		// The queue was closed externally, there is nothing to consume anymore.
	}
	if err := w.Stop(w.stopTimeout); err != nil && !errors.Is(err, ErrAlreadyStopped) {
		return err
	}
	return nil
}

// Unit presents the worker as a unit for the service lifecycle composition.
func (w *Worker) Unit(gracefulStopTimeout time.Duration) service.Unit {
	return service.NewWorkerUnitWithOpts(w, service.WorkerUnitOpts{GracefulStopTimeout: gracefulStopTimeout})
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		batch, ok := w.collectBatch()
		if len(batch) != 0 {
			w.deliver(batch)
		}
		if !ok {
			return
		}
	}
}

// collectBatch gathers up to batchSize events, waiting at most batchTimeout
// after the first one. ok is false when the queue is closed and fully drained.
func (w *Worker) collectBatch() ([]event.Event, bool) {
	it, ok := w.queue.dequeue()
	if !ok {
		return nil, false
	}
	batch := append(make([]event.Event, 0, w.batchSize), it.ev)
	if w.batchSize == 1 {
		return batch, true
	}

	timer := time.NewTimer(w.batchTimeout)
	defer timer.Stop()
	for len(batch) < w.batchSize {
		select {
		case it = <-w.queue.items:
			w.queue.noteDequeued(it)
			batch = append(batch, it.ev)
		case <-w.queue.closeCh:
			// Take what is already buffered and ship the batch.
			// The next collectBatch call does the conclusive drained check.
			for len(batch) < w.batchSize {
				buffered, bufferedOk := w.queue.tryDequeue()
				if !bufferedOk {
					break
				}
				batch = append(batch, buffered.ev)
			}
			return batch, true
		case <-timer.C:
			return batch, true
		}
	}
	return batch, true
}

func (w *Worker) deliver(batch []event.Event) {
	logger := w.logger.With(
		log.String("batch_id", xid.New().String()),
		log.Int("batch_size", len(batch)),
	)

	start := time.Now()
	err := retry.DoWithRetry(w.deliveryCtx, w.retryPolicy, isRetryableSinkError,
		func(retryErr error, delay time.Duration) {
			w.metricsCollector.IncDeliveryRetries()
			logger.Warn("batch delivery failed, will retry",
				log.Error(retryErr), log.Duration("retry_delay", delay))
		},
		func(ctx context.Context) error {
			return w.writeBatch(ctx, batch)
		},
	)
	w.metricsCollector.ObserveDeliveryDuration(time.Since(start))

	if err != nil {
		w.metricsCollector.IncFailedBatches(len(batch))
		logger.Error("batch dropped, delivery failed", log.Error(err))
		return
	}
	w.metricsCollector.IncDeliveredBatches(len(batch))
	logger.Debug("batch delivered")
}

// writeBatch calls the sink converting its panics into errors.
func (w *Worker) writeBatch(ctx context.Context, batch []event.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			w.logger.Error(fmt.Sprintf("panic in sink: %+v", p), log.Bytes("stack", stack))
			err = fmt.Errorf("sink panic: %+v", p)
		}
	}()
	return w.sink.Write(ctx, batch)
}

// isRetryableSinkError reports whether a failed write should be retried.
// An open circuit breaker and a canceled delivery fail the batch at once.
func isRetryableSinkError(err error) bool {
	return !errors.Is(err, circuitbreaker.ErrOpen) && !errors.Is(err, context.Canceled)
}
