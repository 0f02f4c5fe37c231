/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides an in-memory cache with LRU eviction, TTL expiration,
// single-flight value provisioning with negative caching of provider errors,
// and Prometheus metrics.
package lrucache
