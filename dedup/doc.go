/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package dedup provides an event processor that suppresses duplicate events.
//
// Each event is reduced to a deterministic signature computed over a configurable
// subset of its fields (exact names or glob patterns; several hash algorithms are
// supported). A signature seen for the first time passes through and is remembered
// for the configured window; events with the same signature arriving within that
// window are suppressed. Duplicates don't prolong the window: suppression is
// relative to the moment the signature was first seen.
//
// The number of remembered signatures is bounded, the least recently seen one is
// evicted when the bound is reached. The processor implements the cleanup.Target
// interface, so a cleanup.Manager can reclaim expired signatures between events.
package dedup
