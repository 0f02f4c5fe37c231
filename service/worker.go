/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/acronis/go-eventkit/log"
)

// Worker performs some (usually long-running) work.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ErrPeriodicWorkerStop may be returned by the underlying worker
// to interrupt the PeriodicWorker loop without reporting an error.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker error")

// PeriodicWorker runs the underlying worker repeatedly with a delay between the runs.
// The pipeline uses it for housekeeping, for example the periodic stats logging.
type PeriodicWorker struct {
	worker            Worker
	logger            log.FieldLogger
	initialDelay      time.Duration
	intervalDelay     time.Duration
	intervalDelayFunc func(worker Worker, err error) time.Duration
}

// PeriodicWorkerOpts contains optional parameters for constructing PeriodicWorker.
type PeriodicWorkerOpts struct {
	// InitialDelay is the delay before the first run. Zero means run immediately.
	InitialDelay time.Duration

	// IntervalDelayFunc computes the delay before the next run from the result
	// of the previous one. When set, it takes precedence over the constant delay.
	IntervalDelayFunc func(worker Worker, err error) time.Duration
}

// NewPeriodicWorker creates a new instance of PeriodicWorker with constant delays.
func NewPeriodicWorker(worker Worker, intervalDelay time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, intervalDelay, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts creates a new instance of PeriodicWorker
// with an ability to specify different optional parameters.
func NewPeriodicWorkerWithOpts(
	worker Worker, intervalDelay time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	return &PeriodicWorker{
		worker:            worker,
		logger:            logger,
		initialDelay:      opts.InitialDelay,
		intervalDelay:     intervalDelay,
		intervalDelayFunc: opts.IntervalDelayFunc,
	}
}

// Run runs PeriodicWorker loop until ctx is canceled or the underlying worker
// returns ErrPeriodicWorkerStop. Other errors are logged and the loop goes on.
func (w *PeriodicWorker) Run(ctx context.Context) (resErr error) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error(fmt.Sprintf("panic: %+v", p), log.Bytes("stack", panicStack()))
			panic(p)
		}
		if resErr != nil {
			w.logger.Error("periodic worker stopped with error", log.Error(resErr))
			return
		}
		w.logger.Info("periodic worker stopped successfully")
	}()

	w.logger.Infof("running periodic worker (initialDelay=%s, intervalDelay=%s)...",
		w.initialDelay, w.intervalDelay)

	timer := time.NewTimer(w.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		runErr := w.worker.Run(ctx)
		if errors.Is(runErr, ErrPeriodicWorkerStop) {
			return nil
		}
		if runErr != nil {
			w.logger.Error("periodically running worker finished with error", log.Error(runErr))
		}

		nextDelay := w.intervalDelay
		if w.intervalDelayFunc != nil {
			nextDelay = w.intervalDelayFunc(w.worker, runErr)
		}

		// The timer has fired and its channel is drained, Reset is safe here.
		timer.Reset(nextDelay)
	}
}

func panicStack() []byte {
	const maxStackSize = 8192
	buf := make([]byte, maxStackSize)
	return buf[:runtime.Stack(buf, false)]
}
