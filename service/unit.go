/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component with its own lifecycle that can be started and stopped.
// Event pipelines and their delivery workers are exposed as units so
// applications can run them alongside their own components.
type Unit interface {
	// Start begins the unit's operation.
	//
	// An implementation may perform its initialization and return immediately,
	// or block the calling goroutine for the unit's whole lifetime.
	// Stop may be called regardless of whether the unit started successfully,
	// failed, or is still running.
	//
	// A fatal error that makes the unit unable to continue is sent to fatalErr.
	// If Start succeeds, nothing is written, and the channel must not be used
	// after Start has returned.
	Start(fatalErr chan<- error)

	// Stop halts the unit.
	//
	// If gracefully is true, the unit should finish the work it has already
	// accepted before returning. Stop may be called even if Start failed or
	// was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that expose Prometheus metrics.
// Service registers the metrics before starting the unit and unregisters
// them after it has been stopped.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
