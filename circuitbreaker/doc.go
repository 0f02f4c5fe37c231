/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package circuitbreaker provides a failure-isolation state machine for calls to an unreliable dependency.
// The breaker opens after a configured number of consecutive failures, fails fast while open,
// and probes recovery with a single trial call after a timeout.
package circuitbreaker
