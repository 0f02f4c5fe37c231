/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides log.FieldLogger implementations for tests:
// a Recorder that keeps logged entries for assertions and a synchronous
// JSON logger for readable test output.
// It was inspired by httptest (https://golang.org/pkg/net/http/httptest) from Go standard library.
package logtest
