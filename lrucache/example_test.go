/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"fmt"
	"log"
	"time"
)

func Example() {
	type TenantInfo struct {
		Name string
		Plan string
	}

	// Make, configure, and register Prometheus metrics collector.
	metricsCollector := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{Namespace: "logpipe"})
	metricsCollector.MustRegister()
	defer metricsCollector.Unregister()

	// Make LRU cache for storing maximum 1000 entries with 5m TTL.
	cache, err := NewWithOpts[string, TenantInfo](1000, metricsCollector, Options{DefaultTTL: 5 * time.Minute})
	if err != nil {
		log.Fatal(err)
	}

	// Concurrent lookups of the same missing key share a single provider call.
	lookupTenant := func(key string) (TenantInfo, error) {
		// Imagine an expensive directory request here.
		return TenantInfo{Name: "Initech", Plan: "premium"}, nil
	}
	info, err := cache.GetOrProvide("tenant:42", func() (TenantInfo, error) {
		return lookupTenant("tenant:42")
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s, %s\n", info.Name, info.Plan)

	// The second read is served from the cache.
	if info, found := cache.Get("tenant:42"); found {
		fmt.Printf("%s, %s\n", info.Name, info.Plan)
	}

	// Output:
	// Initech, premium
	// Initech, premium
}
