/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package eventqueue

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-eventkit/circuitbreaker"
	"github.com/acronis/go-eventkit/event"
)

// Sink is a destination for batches of events leaving the queue.
// A single worker calls Write sequentially. A sink shared between several
// workers must be safe for concurrent use.
type Sink interface {
	// Write delivers a batch of events to the destination.
	// A returned error makes the worker retry the batch according to its retry policy.
	Write(ctx context.Context, batch []event.Event) error
}

// SinkFunc is an adapter to allow the use of ordinary functions as Sink.
type SinkFunc func(ctx context.Context, batch []event.Event) error

// Write implements the Sink interface.
func (f SinkFunc) Write(ctx context.Context, batch []event.Event) error {
	return f(ctx, batch)
}

// BreakerSink guards a sink with a circuit breaker.
// While the breaker is open, Write fails fast with circuitbreaker.ErrOpen
// and the destination is not called at all.
type BreakerSink struct {
	sink    Sink
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerSink creates a new BreakerSink wrapping the passed sink.
func NewBreakerSink(sink Sink, breaker *circuitbreaker.CircuitBreaker) (*BreakerSink, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if breaker == nil {
		return nil, fmt.Errorf("circuit breaker must not be nil")
	}
	return &BreakerSink{sink: sink, breaker: breaker}, nil
}

// Write implements the Sink interface.
func (s *BreakerSink) Write(ctx context.Context, batch []event.Event) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.sink.Write(ctx, batch)
	})
}

// DefaultRateLimitingWaitTimeout is a default value of RateLimitingSinkOpts.WaitTimeout.
const DefaultRateLimitingWaitTimeout = 15 * time.Second

// RateLimitingSinkOpts represents an options for RateLimitingSink.
type RateLimitingSinkOpts struct {
	// Burst is the maximum number of events the limiter admits at once.
	// It must not be less than the worker's batch size,
	// a batch bigger than the burst can never be admitted.
	// By default, the rate limit value is used.
	Burst int

	// WaitTimeout is the maximum time Write waits for the limiter to admit the batch.
	// By default, DefaultRateLimitingWaitTimeout is used.
	WaitTimeout time.Duration
}

// RateLimitingSink wraps a sink and throttles egress to the destination
// to the configured number of events per second.
// Write suspends until the limiter admits the whole batch or the wait timeout fires.
type RateLimitingSink struct {
	sink        Sink
	rateLimiter *rate.Limiter

	RateLimit   int
	Burst       int
	WaitTimeout time.Duration
}

// NewRateLimitingSink creates a new RateLimitingSink with the specified rate limit
// in events per second.
func NewRateLimitingSink(sink Sink, rateLimit int) (*RateLimitingSink, error) {
	return NewRateLimitingSinkWithOpts(sink, rateLimit, RateLimitingSinkOpts{})
}

// NewRateLimitingSinkWithOpts creates a new RateLimitingSink with the specified rate limit and options.
// For options that are not presented, the default values will be used.
func NewRateLimitingSinkWithOpts(sink Sink, rateLimit int, opts RateLimitingSinkOpts) (*RateLimitingSink, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if rateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}
	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst must be positive")
	}
	if opts.Burst == 0 {
		opts.Burst = rateLimit
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultRateLimitingWaitTimeout
	}
	return &RateLimitingSink{
		sink:        sink,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), opts.Burst),
		RateLimit:   rateLimit,
		Burst:       opts.Burst,
		WaitTimeout: opts.WaitTimeout,
	}, nil
}

// Write implements the Sink interface.
func (s *RateLimitingSink) Write(ctx context.Context, batch []event.Event) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.WaitTimeout)
	defer cancel()

	if err := s.rateLimiter.WaitN(waitCtx, len(batch)); err != nil {
		return &RateLimitingWaitError{Inner: err}
	}
	return s.sink.Write(ctx, batch)
}

// RateLimitingWaitError is returned in Write method of RateLimitingSink
// when the batch was not admitted within the wait timeout.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to sink rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}
