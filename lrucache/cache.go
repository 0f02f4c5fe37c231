/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultErrorTTL is the default time during which a failed provider result
// is served from the cache instead of re-invoking the provider.
const DefaultErrorTTL = time.Second

type cacheEntry[K comparable, V any] struct {
	key       K
	value     V
	err       error
	expiresAt time.Time
}

func (e *cacheEntry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

// LRUCache represents an LRU cache with TTL expiry, single-flight value provisioning,
// and Prometheus metrics.
//
// Entries may hold either a value or a negatively cached provider error
// (see GetOrProvide). The number of entries never exceeds the configured maximum;
// adding an entry to a full cache evicts the least-recently-used one.
// In-flight provider calls are tracked outside the entry map,
// so eviction only ever targets resolved entries.
type LRUCache[K comparable, V any] struct {
	maxEntries int

	defaultTTL time.Duration
	errorTTL   time.Duration

	mu      sync.Mutex
	lruList *list.List
	cache   map[K]*list.Element // map of cache entries, value is a lruList element

	provideGroup singleFlightGroup[K, V]

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// DefaultTTL is the default TTL for the cache entries. Zero means no expiration.
	// Please note that expired entries are not removed immediately,
	// but only when they are accessed or during cleanup
	// (see CleanupExpiredEntries and RunPeriodicCleanup).
	DefaultTTL time.Duration

	// ErrorTTL is the TTL for negatively cached provider errors.
	// While it lasts, GetOrProvide returns the cached error
	// instead of re-invoking the provider. Zero means DefaultErrorTTL.
	ErrorTTL time.Duration
}

// New creates a new LRUCache with the provided maximum number of entries and metrics collector.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*LRUCache[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Options{})
}

// NewWithOpts creates a new LRUCache with the provided maximum number of entries, metrics collector, and options.
// Metrics collector is used to collect statistics about cache usage.
// It can be nil, in this case, metrics will be disabled.
func NewWithOpts[K comparable, V any](maxEntries int, metricsCollector MetricsCollector, opts Options) (*LRUCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0 (no expiration)")
	}
	if opts.ErrorTTL < 0 {
		return nil, fmt.Errorf("errorTTL must be greater or equal to 0 (default)")
	}
	if opts.ErrorTTL == 0 {
		opts.ErrorTTL = DefaultErrorTTL
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}

	return &LRUCache[K, V]{
		maxEntries:       maxEntries,
		lruList:          list.New(),
		cache:            make(map[K]*list.Element),
		metricsCollector: metricsCollector,
		defaultTTL:       opts.DefaultTTL,
		errorTTL:         opts.ErrorTTL,
	}, nil
}

// Get returns a value from the cache by the provided key.
// Expired entries and negatively cached provider errors are reported as absence.
// Get never triggers value computation.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	val, err, found := c.peek(key)
	if !found || err != nil {
		var zero V
		return zero, false
	}
	return val, true
}

// Add adds a value to the cache with the provided key.
// If the cache is full, the least-recently-used entry will be removed.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.AddWithTTL(key, value, c.defaultTTL)
}

// AddWithTTL adds a value to the cache with the provided key and TTL.
// If the cache is full, the least-recently-used entry will be removed.
// Please note that expired entries are not removed immediately,
// but only when they are accessed or during cleanup
// (see CleanupExpiredEntries and RunPeriodicCleanup).
func (c *LRUCache[K, V]) AddWithTTL(key K, value V, ttl time.Duration) {
	c.add(key, value, nil, ttl)
}

// GetOrAdd returns a value from the cache by the provided key.
// If the key does not exist, valueProvider is called under the cache lock
// and its result is added to the cache.
// valueProvider must be cheap and must not call back into the cache;
// for expensive or fallible computations, use GetOrProvide.
func (c *LRUCache[K, V]) GetOrAdd(key K, valueProvider func() V) (value V, exists bool) {
	return c.GetOrAddWithTTL(key, valueProvider, c.defaultTTL)
}

// GetOrAddWithTTL returns a value from the cache by the provided key.
// If the key does not exist, it adds a new value to the cache with the provided TTL.
func (c *LRUCache[K, V]) GetOrAddWithTTL(key K, valueProvider func() V, ttl time.Duration) (value V, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val, err, found := c.peekLocked(key); found && err == nil {
		return val, true
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	value = valueProvider()
	c.upsertLocked(key, value, nil, expiresAt)
	return value, false
}

// GetOrProvide returns a value from the cache by the provided key,
// invoking provider to compute it on a miss.
//
// If a live entry exists, its value (or its negatively cached error) is returned
// without calling provider. If a computation for the key is already in flight,
// the call awaits it and receives the identical result. Otherwise the caller
// becomes the sole owner of the key: provider is invoked exactly once, without
// any cache lock held, and its result, success or failure, is stored with a fresh
// TTL (DefaultTTL for values, ErrorTTL for errors) before the in-flight marker
// is released.
//
// Calls for different keys never await each other.
func (c *LRUCache[K, V]) GetOrProvide(key K, provider func() (V, error)) (V, error) {
	if val, err, found := c.peek(key); found {
		return val, err
	}
	return c.provideGroup.Do(key, func() (V, error) {
		// Re-check under the flight: a concurrent flight may have stored
		// the result between our miss and acquiring ownership.
		if val, err, found := c.peek(key); found {
			return val, err
		}
		val, err := provider()
		if err != nil {
			c.add(key, val, err, c.errorTTL)
			return val, err
		}
		c.add(key, val, nil, c.defaultTTL)
		return val, nil
	})
}

// Remove removes a value from the cache by the provided key.
// It returns true if the key was present.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return false
	}
	c.removeElementLocked(elem)
	c.metricsCollector.SetAmount(len(c.cache))
	return true
}

// Purge clears the cache.
// Keep in mind that this method does not reset the cache size
// and does not reset Prometheus metrics except for the total number of entries.
// All removed entries will not be counted as evictions.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metricsCollector.SetAmount(0)
	c.cache = make(map[K]*list.Element)
	c.lruList.Init()
}

// Resize changes the cache size and returns the number of evicted entries.
func (c *LRUCache[K, V]) Resize(size int) (evicted int) {
	if size <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxEntries = size
	evicted = len(c.cache) - size
	if evicted <= 0 {
		return 0
	}
	for i := 0; i < evicted; i++ {
		_ = c.removeOldestLocked()
	}
	c.metricsCollector.SetAmount(len(c.cache))
	c.metricsCollector.AddEvictions(evicted)
	return evicted
}

// Len returns the number of items in the cache, including not yet removed expired ones.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Stats represents a snapshot of the cache usage.
type Stats struct {
	EntriesAmount int
	MaxEntries    int
	Utilization   float64
	DefaultTTL    time.Duration
}

// Stats returns a snapshot of the cache usage.
func (c *LRUCache[K, V]) Stats() Stats {
	c.mu.Lock()
	amount := len(c.cache)
	c.mu.Unlock()
	return Stats{
		EntriesAmount: amount,
		MaxEntries:    c.maxEntries,
		Utilization:   float64(amount) / float64(c.maxEntries),
		DefaultTTL:    c.defaultTTL,
	}
}

// Utilization returns the fill ratio of the cache in the [0, 1] range.
func (c *LRUCache[K, V]) Utilization() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(len(c.cache)) / float64(c.maxEntries)
}

// CleanupExpiredEntries removes all entries whose TTL has elapsed by the provided
// moment, independent of their LRU position, and returns the number of removed entries.
// Entries without expiration time are not affected.
func (c *LRUCache[K, V]) CleanupExpiredEntries(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, elem := range c.cache {
		if elem.Value.(*cacheEntry[K, V]).expired(now) {
			c.removeElementLocked(elem)
			removed++
		}
	}
	if removed != 0 {
		c.metricsCollector.SetAmount(len(c.cache))
	}
	return removed
}

// RemoveIf removes all entries for which shouldRemove returns true
// and returns the number of removed entries.
// Negatively cached errors are skipped.
// shouldRemove is called under the cache lock and must not call back into the cache.
func (c *LRUCache[K, V]) RemoveIf(shouldRemove func(key K, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.cache {
		entry := elem.Value.(*cacheEntry[K, V])
		if entry.err == nil && shouldRemove(key, entry.value) {
			c.removeElementLocked(elem)
			removed++
		}
	}
	if removed != 0 {
		c.metricsCollector.SetAmount(len(c.cache))
	}
	return removed
}

// RunPeriodicCleanup runs a cycle of periodic cleanup of expired entries.
// It's supposed to be run in a separate goroutine.
// For amortized cleanup shared between several containers, use the cleanup package.
func (c *LRUCache[K, V]) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CleanupExpiredEntries(time.Now())
		}
	}
}

func (c *LRUCache[K, V]) peek(key K) (value V, err error, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peekLocked(key)
}

func (c *LRUCache[K, V]) peekLocked(key K) (value V, err error, found bool) {
	elem, hit := c.cache[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return value, nil, false
	}
	entry := elem.Value.(*cacheEntry[K, V])
	if entry.expired(time.Now()) {
		c.removeElementLocked(elem)
		c.metricsCollector.SetAmount(len(c.cache))
		c.metricsCollector.IncMisses()
		return value, nil, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return entry.value, entry.err, true
}

func (c *LRUCache[K, V]) add(key K, value V, err error, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(key, value, err, expiresAt)
}

func (c *LRUCache[K, V]) upsertLocked(key K, value V, err error, expiresAt time.Time) {
	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = &cacheEntry[K, V]{key: key, value: value, err: err, expiresAt: expiresAt}
		return
	}
	c.cache[key] = c.lruList.PushFront(&cacheEntry[K, V]{key: key, value: value, err: err, expiresAt: expiresAt})
	if len(c.cache) <= c.maxEntries {
		c.metricsCollector.SetAmount(len(c.cache))
		return
	}
	if evictedEntry := c.removeOldestLocked(); evictedEntry != nil {
		c.metricsCollector.AddEvictions(1)
	}
}

func (c *LRUCache[K, V]) removeElementLocked(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry[K, V]).key)
}

func (c *LRUCache[K, V]) removeOldestLocked() *cacheEntry[K, V] {
	elem := c.lruList.Back()
	if elem == nil {
		return nil
	}
	c.lruList.Remove(elem)
	entry := elem.Value.(*cacheEntry[K, V])
	delete(c.cache, entry.key)
	return entry
}
