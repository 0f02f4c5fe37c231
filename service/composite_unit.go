/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
	"sync/atomic"
)

// CompositeUnit bundles several service units into one. A typical event pipeline
// is composed this way: the delivery worker, the periodic stats worker and the
// cleanup managers start and stop together as a single Unit.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start launches all units in the composition concurrently, each in its own goroutine, by calling their Start methods.
// It blocks until all Start method invocations return.
//
// If any unit writes to the provided error channel upon returning, the method attempts to stop all other units
// (non-gracefully) by calling their Stop methods. A CompositeUnitError, potentially including errors from the stop
// operations, is then sent to the provided channel.
func (cu *CompositeUnit) Start(fatalError chan<- error) {
	fatalErrs := make([]chan error, len(cu.Units))
	for i := range fatalErrs {
		fatalErrs[i] = make(chan error, 1)
	}

	outcome := make(chan bool, len(cu.Units))
	remaining := int32(len(cu.Units)) //nolint:gosec // len fits int32
	for i := range cu.Units {
		unit, unitFatal := cu.Units[i], fatalErrs[i]
		go func() {
			unit.Start(unitFatal)
			if len(unitFatal) != 0 {
				outcome <- false
				return
			}
			if atomic.AddInt32(&remaining, -1) == 0 {
				outcome <- true
			}
		}()
	}

	if <-outcome {
		return
	}

	stopErr := cu.Stop(false)

	errs := make([]error, 0, len(cu.Units))
	for _, unitFatal := range fatalErrs {
		select {
		case err := <-unitFatal:
			errs = append(errs, err)
		default:
		}
	}
	if stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	if len(errs) > 0 {
		fatalError <- &CompositeUnitError{errs}
	}
}

// Stop stops all units in the composition (each in its own separate goroutine).
// Errors that occurred while stopping the units are collected into a single
// CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	stopResults := make(chan error, len(cu.Units))

	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		unit := u
		go func() {
			defer wg.Done()
			stopResults <- unit.Stop(gracefully)
		}()
	}
	wg.Wait()

	var errs []error
	for range cu.Units {
		if err := <-stopResults; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &CompositeUnitError{errs}
	}
	return nil
}

// MustRegisterMetrics registers metrics of all units implementing MetricsRegisterer
// in Prometheus client and panics if any error occurs.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of all units implementing MetricsRegisterer in Prometheus client.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError collects the errors of the units that failed to start or stop.
type CompositeUnitError struct {
	UnitErrors []error
}

// Error joins the unit errors into one string.
func (cue *CompositeUnitError) Error() string {
	parts := make([]string, 0, len(cue.UnitErrors))
	for _, err := range cue.UnitErrors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
