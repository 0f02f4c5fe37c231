/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package throttle provides an event processor that rate-limits events by a per-event key.
//
// The key is extracted from a configurable event field (events without it share one default key).
// Three rate-limiting algorithms are supported: exact sliding window (default),
// approximated sliding window (cheaper on memory), and leaky bucket (GCRA).
// Over-limit events are either dropped or passed through probabilistically ("sample" strategy).
// Glob patterns of keys may be included in or excluded from throttling.
//
// The number of tracked keys is bounded, the least recently used key is evicted when
// the bound is reached. With the exact sliding window algorithm the processor also
// implements the cleanup.Target interface, so a cleanup.Manager can reclaim keys
// that have no events within the window.
package throttle
