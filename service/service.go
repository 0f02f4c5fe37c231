/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-eventkit/log"
)

// Opts configures a Service.
type Opts struct {
	// ShutdownSignals lists the OS signals that trigger a graceful stop.
	ShutdownSignals []os.Signal
}

// Service hosts a Unit for the lifetime of a process: it registers the unit's
// metrics, starts it and stops it gracefully on an OS signal. Applications
// embedding an event pipeline typically wrap it (or a CompositeUnit holding it
// together with other units) in a Service inside main.
type Service struct {
	Unit    Unit
	Signals chan os.Signal
	Logger  log.FieldLogger
	Opts    Opts
}

// New creates a Service hosting the given unit.
// SIGINT and SIGTERM are treated as shutdown signals.
func New(logger log.FieldLogger, unit Unit) *Service {
	return NewWithOpts(logger, unit, Opts{
		ShutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	})
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(logger log.FieldLogger, unit Unit, opts Opts) *Service {
	return &Service{
		Signals: make(chan os.Signal, 1),
		Unit:    unit,
		Logger:  logger,
		Opts:    opts,
	}
}

// Start wraps StartContext using the background context.
func (s *Service) Start() error {
	return s.StartContext(context.Background())
}

// StartContext starts the service unit in a separate goroutine and blocks
// until the context is canceled, a shutdown signal arrives or the unit
// reports a fatal error. On cancellation and signals the unit is stopped
// gracefully, a fatal error is returned as is.
func (s *Service) StartContext(ctx context.Context) error {
	if mr, ok := s.Unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	fatalError := make(chan error, 1)
	go s.Unit.Start(fatalError)

	signal.Notify(s.Signals, s.Opts.ShutdownSignals...)

	stopGracefully := func() error {
		if err := s.Unit.Stop(true); err != nil {
			return fmt.Errorf("stop service gracefully: %w", err)
		}
		return nil
	}

	select {
	case <-ctx.Done():
		s.Logger.Info("context is canceled, service will be stopped")
		return stopGracefully()
	case sig := <-s.Signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
		return stopGracefully()
	case err := <-fatalError:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	}
}
