/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package cleanup provides a background manager that reclaims expired entries of cache-backed
// structures off the producer path. Passes are triggered periodically, on demand, or by a
// utilization threshold, run strictly one at a time, and are abandoned on a hard deadline.
package cleanup
