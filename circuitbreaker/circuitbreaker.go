/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-eventkit/log"
)

// State represents the current mode of the circuit breaker.
type State int

// Circuit breaker states.
const (
	// StateClosed is the normal mode, calls pass through to the protected function.
	StateClosed State = iota

	// StateOpen is the tripped mode, calls fail fast with ErrOpen without invoking the protected function.
	StateOpen

	// StateHalfOpen is the probing mode, a single trial call is in flight to check
	// whether the protected function has recovered.
	StateHalfOpen
)

// String returns the state name suitable for logs and metric labels.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ErrOpen is returned by Do when the circuit breaker rejects a call without invoking the protected function.
var ErrOpen = errors.New("circuit breaker is open")

var errCallPanicked = errors.New("protected call panicked")

// CircuitBreaker isolates callers from a misbehaving dependency.
// While closed, calls pass through and consecutive failures are counted.
// Reaching the failure threshold opens the breaker, and until the recovery timeout elapses
// every call fails fast with ErrOpen. The first call after the timeout is let through
// as a single trial, its outcome decides between closing and re-opening.
//
// All methods are safe for concurrent use.
type CircuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration

	logger           log.FieldLogger
	metricsCollector MetricsCollector
	onStateChange    func(from, to State)

	mu           sync.Mutex
	state        State
	failureCount int
	openedAt     time.Time
}

// Opts represents an options for CircuitBreaker.
type Opts struct {
	// Logger is used for logging state transitions. No logging is done if it's not specified.
	Logger log.FieldLogger

	// MetricsCollector is a collector of the breaker's metrics.
	// If not specified, metrics collecting will be disabled.
	MetricsCollector MetricsCollector

	// OnStateChange is called on every state transition after the internal state is updated.
	// It's called synchronously under the breaker's lock and must not call back into the breaker.
	OnStateChange func(from, to State)
}

// New creates a new CircuitBreaker that opens after failureThreshold consecutive failures
// and allows a trial call after recoveryTimeout.
func New(failureThreshold int, recoveryTimeout time.Duration) (*CircuitBreaker, error) {
	return NewWithOpts(failureThreshold, recoveryTimeout, Opts{})
}

// NewWithOpts is a more configurable version of the CircuitBreaker creation.
func NewWithOpts(failureThreshold int, recoveryTimeout time.Duration, opts Opts) (*CircuitBreaker, error) {
	if failureThreshold <= 0 {
		return nil, fmt.Errorf("failureThreshold must be greater than zero, got %d", failureThreshold)
	}
	if recoveryTimeout <= 0 {
		return nil, fmt.Errorf("recoveryTimeout must be greater than zero, got %s", recoveryTimeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	metricsCollector.SetState(StateClosed)
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger,
		metricsCollector: metricsCollector,
		onStateChange:    opts.OnStateChange,
	}, nil
}

// Do invokes fn under the breaker's protection.
// It returns ErrOpen without invoking fn while the breaker is open or a trial call is already in flight.
// Otherwise fn's error is returned unchanged, the breaker only observes it.
// A context that is already done short-circuits with ctx.Err() and is not counted as a failure.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = cb.beforeCall(time.Now()); err != nil {
		return err
	}
	finished := false
	defer func() {
		if !finished {
			cb.afterCall(time.Now(), errCallPanicked)
		}
	}()
	err = fn(ctx)
	finished = true
	cb.afterCall(time.Now(), err)
	return err
}

// State returns the current state of the breaker.
// An elapsed recovery timeout is reflected only when the next call arrives,
// so an idle open breaker keeps reporting StateOpen.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) beforeCall(now time.Time) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.recoveryTimeout {
			return ErrOpen
		}
		// This caller becomes the single trial.
		cb.changeStateLocked(StateHalfOpen, now)
		return nil
	case StateHalfOpen:
		return ErrOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(now time.Time, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr == nil {
		switch cb.state {
		case StateClosed:
			cb.failureCount = 0
		case StateHalfOpen:
			cb.changeStateLocked(StateClosed, now)
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.changeStateLocked(StateOpen, now)
		}
	case StateHalfOpen:
		cb.changeStateLocked(StateOpen, now)
	case StateOpen:
		// A call that started before the breaker opened has failed, restart the recovery timer.
		cb.openedAt = now
	}
}

func (cb *CircuitBreaker) changeStateLocked(newState State, now time.Time) {
	oldState := cb.state
	cb.state = newState
	switch newState {
	case StateClosed:
		cb.failureCount = 0
	case StateOpen:
		cb.openedAt = now
	}

	cb.metricsCollector.IncTransitions(oldState, newState)
	cb.metricsCollector.SetState(newState)

	logFields := []log.Field{log.String("from", oldState.String()), log.String("to", newState.String())}
	if newState == StateOpen {
		cb.logger.Warn("circuit breaker opened", append(logFields, log.Int("failure_count", cb.failureCount))...)
	} else {
		cb.logger.Info("circuit breaker state changed", logFields...)
	}

	if cb.onStateChange != nil {
		cb.onStateChange(oldState, newState)
	}
}
