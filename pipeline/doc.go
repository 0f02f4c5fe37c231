/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package pipeline assembles the event-processing stages into a single conveyor.
//
// A submitted event passes the enabled stages in a fixed order: secret masking,
// deduplication, throttling, then custom processors. Events surviving the stages
// are buffered in a bounded queue and delivered to a sink in batches by
// a background worker. Deliveries may be guarded with a circuit breaker and
// an egress rate limiter, so a slow or failing destination never blocks producers.
//
// The pipeline runs as a single service unit: the delivery worker, periodic
// cleanup of the deduplication and throttling state, and a stats logger are
// composed together and managed by the Start and Stop methods.
//
// All stages are configured through a single Config that can be loaded from
// YAML or JSON, for example:
//
//	queue:
//	  capacity: 10000
//	  batchSize: 100
//	  batchTimeout: 1s
//	mask:
//	  enabled: true
//	dedup:
//	  enabled: true
//	  window: 30s
//	throttle:
//	  enabled: true
//	  keyField: tenant_id
//	  rate: 100/m
//	circuitBreaker:
//	  enabled: true
//	  failureThreshold: 5
//	  recoveryTimeout: 30s
package pipeline
