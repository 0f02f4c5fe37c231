/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil provides assertion helpers used in the library's own tests:
// checks for Prometheus metric samples and for errors passed through channels.
package testutil

type tHelper interface {
	Helper()
}
