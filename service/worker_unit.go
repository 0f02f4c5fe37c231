/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"time"
)

// ErrWorkerUnitStopTimeoutExceeded is returned by WorkerUnit.Stop when the worker
// does not finish within the configured graceful stop timeout.
var ErrWorkerUnitStopTimeoutExceeded = errors.New("worker unit stop timeout exceeded")

// WorkerUnit allows presenting Worker as Unit. The event pipeline wraps its
// delivery worker and its periodic stats worker this way to compose them into
// a single startable unit.
type WorkerUnit struct {
	start             func(fatalErr chan<- error)
	stop              func(gracefully bool) error
	metricsRegisterer MetricsRegisterer
}

// WorkerUnitOpts contains optional parameters for constructing WorkerUnit.
// Zero GracefulStopTimeout means a graceful stop waits for the worker with no deadline;
// workers that bound their own shutdown should be wrapped with the zero value.
type WorkerUnitOpts struct {
	MetricsRegisterer   MetricsRegisterer
	GracefulStopTimeout time.Duration
}

// NewWorkerUnit creates a new instance of WorkerUnit.
func NewWorkerUnit(worker Worker) *WorkerUnit {
	return NewWorkerUnitWithOpts(worker, WorkerUnitOpts{})
}

// NewWorkerUnitWithOpts creates a new instance of WorkerUnit
// with an ability to specify different optional parameters.
func NewWorkerUnitWithOpts(worker Worker, opts WorkerUnitOpts) *WorkerUnit {
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{}, 1)

	start := func(fatalErr chan<- error) {
		if err := worker.Run(ctx); err != nil {
			fatalErr <- err
		}
		runDone <- struct{}{}
	}

	stop := func(gracefully bool) error {
		cancel()
		if !gracefully {
			return nil
		}
		if opts.GracefulStopTimeout == 0 {
			<-runDone
			return nil
		}
		select {
		case <-runDone:
			return nil
		case <-time.After(opts.GracefulStopTimeout):
			return ErrWorkerUnitStopTimeoutExceeded
		}
	}

	return &WorkerUnit{start: start, stop: stop, metricsRegisterer: opts.MetricsRegisterer}
}

// Start runs the underlying Worker on the calling goroutine.
// A non-nil error from Run is reported to fatalErr.
func (u *WorkerUnit) Start(fatalErr chan<- error) {
	u.start(fatalErr)
}

// Stop cancels the context the underlying Worker runs with.
// A graceful stop additionally waits for Run to return.
func (u *WorkerUnit) Stop(gracefully bool) error {
	return u.stop(gracefully)
}

// MustRegisterMetrics registers the metrics of the underlying Worker, if any.
func (u *WorkerUnit) MustRegisterMetrics() {
	if u.metricsRegisterer != nil {
		u.metricsRegisterer.MustRegisterMetrics()
	}
}

// UnregisterMetrics unregisters the metrics of the underlying Worker, if any.
func (u *WorkerUnit) UnregisterMetrics() {
	if u.metricsRegisterer != nil {
		u.metricsRegisterer.UnregisterMetrics()
	}
}
