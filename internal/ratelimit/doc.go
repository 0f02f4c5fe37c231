/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides per-key rate limiting primitives for event throttling.
//
// Three interchangeable algorithms implement the Limiter interface:
//
//   - SlidingWindowLimiter keeps an exact log of allowed-event timestamps per key
//     and never admits more than Count events within any window of Duration.
//   - ApproxSlidingWindowLimiter keeps O(1) per-key counters and approximates
//     the window boundary; cheaper, slightly imprecise.
//   - LeakyBucketLimiter (GCRA) paces events evenly with a configurable burst.
//
// Keys are tracked in LRU-bounded in-memory zones so that unbounded key
// cardinality cannot exhaust memory.
package ratelimit
