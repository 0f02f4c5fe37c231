/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-eventkit/lrucache"
)

// SlidingWindowLimiter implements the sliding window rate limiting algorithm precisely:
// it keeps a log of allowed-event timestamps per key, so at any instant at most
// maxRate.Count events are admitted within any window of maxRate.Duration.
// Memory per key is bounded by maxRate.Count timestamps.
//
// Keys are tracked in an LRU zone bounded by maxKeys. Evicting a key forgets its
// history, which may briefly over-admit that key; size maxKeys well above the live
// key cardinality. maxKeys == 0 means a single window shared by all keys.
type SlidingWindowLimiter struct {
	maxRate   Rate
	getWindow func(key string) *windowLog
	store     *lrucache.LRUCache[string, *windowLog]
	single    *windowLog
}

// NewSlidingWindowLimiter creates a new exact sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate, maxKeys int) (*SlidingWindowLimiter, error) {
	if maxRate.Count <= 0 || maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %s", maxRate)
	}

	l := &SlidingWindowLimiter{maxRate: maxRate}
	if maxKeys == 0 {
		l.single = &windowLog{}
		l.getWindow = func(_ string) *windowLog { return l.single }
		return l, nil
	}

	store, err := lrucache.New[string, *windowLog](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	l.store = store
	l.getWindow = func(key string) *windowLog {
		w, _ := store.GetOrAdd(key, func() *windowLog { return &windowLog{} })
		return w
	}
	return l, nil
}

// Allow checks if one more event for the key fits into the sliding window right now.
// Only allowed events are recorded; denied ones leave the window untouched.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	allow, retryAfter = l.getWindow(key).allow(time.Now(), l.maxRate)
	return allow, retryAfter, nil
}

// CleanupExpired removes keys whose whole timestamp log has slid out of the window
// by the provided moment and returns the number of removed keys.
func (l *SlidingWindowLimiter) CleanupExpired(now time.Time) int {
	cutoff := now.Add(-l.maxRate.Duration)
	if l.store == nil {
		l.single.idle(cutoff)
		return 0
	}
	return l.store.RemoveIf(func(_ string, w *windowLog) bool {
		return w.idle(cutoff)
	})
}

// TrackedKeys returns the number of currently tracked keys.
func (l *SlidingWindowLimiter) TrackedKeys() int {
	if l.store == nil {
		return 0
	}
	return l.store.Len()
}

// Utilization returns the fill ratio of the key store in the [0, 1] range.
func (l *SlidingWindowLimiter) Utilization() float64 {
	if l.store == nil {
		return 0
	}
	return l.store.Utilization()
}

// windowLog is a per-key log of allowed-event timestamps ordered from oldest to newest.
type windowLog struct {
	mu         sync.Mutex
	timestamps []time.Time
}

func (w *windowLog) allow(now time.Time, maxRate Rate) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dropBefore(now.Add(-maxRate.Duration))
	if len(w.timestamps) < maxRate.Count {
		w.timestamps = append(w.timestamps, now)
		return true, 0
	}
	// One slot frees up when the oldest in-window event slides out.
	return false, w.timestamps[0].Add(maxRate.Duration).Sub(now)
}

// dropBefore removes timestamps that are out of the sliding window.
// The window is half-open: an event that happened exactly window ago is already out.
func (w *windowLog) dropBefore(cutoff time.Time) {
	drop := 0
	for drop < len(w.timestamps) && !w.timestamps[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[drop:]...)
	}
}

func (w *windowLog) idle(cutoff time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropBefore(cutoff)
	return len(w.timestamps) == 0
}
