/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package eventqueue provides a bounded FIFO event queue with configurable overflow
// behavior and a delivery worker that drains it in batches.
//
// The queue accepts events from many concurrent producers and never grows beyond its
// capacity. What happens at capacity is governed by the overflow strategy: "drop"
// discards the event without blocking, "block" suspends the producer until space frees
// or the queue is closed, and "sample" probabilistically sheds the event before the
// capacity is even consulted. A full queue is a normal, metered condition, not an error:
// Enqueue reports acceptance with a plain bool.
//
// The worker collects accepted events into batches (bounded by size and time) and hands
// them to a Sink. Failed deliveries are retried with a configurable backoff policy;
// a batch that exhausts its retries is dropped and counted, never requeued and never
// reported back to producers. Sink decorators add failure isolation (BreakerSink)
// and egress pacing (RateLimitingSink).
package eventqueue
