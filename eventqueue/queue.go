/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package eventqueue

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/acronis/go-eventkit/event"
)

type queueItem struct {
	ev         event.Event
	enqueuedAt time.Time
}

// Queue is a bounded FIFO buffer between event producers and the delivery worker.
// Enqueue never returns an error: not accepting an event is an expected, metered
// outcome (full queue, lost sampling draw, closed queue), not an exceptional one.
//
// All methods are safe for concurrent use.
type Queue struct {
	capacity     int
	strategy     string
	samplingRate float64
	randFloat    func() float64

	items chan queueItem

	// mu is held for reading by every Enqueue and for writing by Close.
	// The write acquisition is a barrier: once Close returns, no send is in flight,
	// so an empty items channel conclusively means a drained queue.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeCh   chan struct{}

	metricsCollector MetricsCollector
}

// QueueOpts represents options for the Queue.
type QueueOpts struct {
	// MetricsCollector is a collector of the queue's metrics.
	// If not specified, metrics collecting will be disabled.
	MetricsCollector MetricsCollector

	// RandFloat returns a pseudo-random number in [0, 1) for the "sample" overflow strategy.
	// math/rand.Float64 is used if it's not specified.
	RandFloat func() float64
}

// NewQueue creates a new Queue. Configuration is validated, and all errors
// (negative capacity, out-of-range sampling rate, unknown strategy names)
// are reported here, never at Enqueue time.
func NewQueue(cfg *Config) (*Queue, error) {
	return NewQueueWithOpts(cfg, QueueOpts{})
}

// NewQueueWithOpts is a more configurable version of the NewQueue.
func NewQueueWithOpts(cfg *Config, opts QueueOpts) (*Queue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	strategy := cfg.OverflowStrategy
	if strategy == "" {
		strategy = OverflowStrategyDrop
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	randFloat := opts.RandFloat
	if randFloat == nil {
		randFloat = rand.Float64
	}

	return &Queue{
		capacity:         capacity,
		strategy:         strategy,
		samplingRate:     cfg.SamplingRate,
		randFloat:        randFloat,
		items:            make(chan queueItem, capacity),
		closeCh:          make(chan struct{}),
		metricsCollector: metricsCollector,
	}, nil
}

// Enqueue offers an event to the queue and reports whether it was accepted.
// Accepted events are delivered to the sink in FIFO order.
//
// Behavior at capacity follows the configured overflow strategy:
// "drop" discards the event and returns false without blocking,
// "block" suspends the caller until space frees or the queue is closed,
// "sample" first draws against the sampling rate and discards the event
// without even checking the capacity if the draw is lost.
// Enqueue always returns false after Close.
func (q *Queue) Enqueue(ev event.Event) bool {
	startedAt := time.Now()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.metricsCollector.IncDroppedQueueClosed()
		return false
	}

	it := queueItem{ev: ev, enqueuedAt: startedAt}
	switch q.strategy {
	case OverflowStrategyBlock:
		select {
		case q.items <- it:
		case <-q.closeCh:
			q.metricsCollector.IncDroppedQueueClosed()
			return false
		}
	case OverflowStrategySample:
		if q.randFloat() >= q.samplingRate {
			q.metricsCollector.IncSampledOut()
			return false
		}
		fallthrough
	default:
		select {
		case q.items <- it:
		default:
			q.metricsCollector.IncDroppedQueueFull()
			return false
		}
	}

	q.metricsCollector.IncAccepted()
	q.metricsCollector.ObserveEnqueueWait(time.Since(startedAt))
	q.metricsCollector.SetQueueSize(len(q.items))
	return true
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.items)
}

// Capacity returns the maximum number of events the queue may buffer.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Close puts the queue into the closed state: all subsequent and blocked Enqueue
// calls return false. Events buffered before Close remain available to the worker.
// Close returns after all Enqueue calls that were in flight at its start have finished.
// It is idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		// Wake the producers suspended by the "block" strategy first,
		// they hold read locks and would stall the barrier below.
		close(q.closeCh)
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
	})
}

// dequeue returns the next buffered event, waiting for one to arrive.
// ok is false when the queue is closed and fully drained.
func (q *Queue) dequeue() (it queueItem, ok bool) {
	select {
	case it = <-q.items:
	case <-q.closeCh:
		// Close has started. Wait out its barrier so that no send is in flight,
		// then an empty channel means there is nothing left to deliver.
		q.mu.RLock()
		q.mu.RUnlock() //nolint:staticcheck // empty critical section is the barrier itself
		select {
		case it = <-q.items:
		default:
			return queueItem{}, false
		}
	}
	q.noteDequeued(it)
	return it, true
}

// tryDequeue is a non-waiting version of dequeue. It is best-effort: a false result
// means the buffer is momentarily empty, not that the queue is drained.
func (q *Queue) tryDequeue() (it queueItem, ok bool) {
	select {
	case it = <-q.items:
	default:
		return queueItem{}, false
	}
	q.noteDequeued(it)
	return it, true
}

func (q *Queue) noteDequeued(it queueItem) {
	q.metricsCollector.ObserveTimeInQueue(time.Since(it.enqueuedAt))
	q.metricsCollector.SetQueueSize(len(q.items))
}
