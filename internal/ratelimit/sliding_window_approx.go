/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/acronis/go-eventkit/lrucache"
)

// ApproxSlidingWindowLimiter implements the sliding window rate limiting algorithm
// approximately: it keeps only per-window counters and weighs the previous window
// by its remaining overlap, assuming events were evenly distributed there.
// Memory per key is O(1), at the price of admitting slightly more or fewer events
// around window boundaries than the exact log-based limiter.
type ApproxSlidingWindowLimiter struct {
	getLimiter func(key string) *slidingwindow.Limiter
	maxRate    Rate
}

// NewApproxSlidingWindowLimiter creates a new approximate sliding window rate limiter.
// maxKeys == 0 means a single window shared by all keys.
func NewApproxSlidingWindowLimiter(maxRate Rate, maxKeys int) (*ApproxSlidingWindowLimiter, error) {
	if maxRate.Count <= 0 || maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %s", maxRate)
	}

	newWindowLimiter := func() *slidingwindow.Limiter {
		lim, _ := slidingwindow.NewLimiter(
			maxRate.Duration, int64(maxRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
				return slidingwindow.NewLocalWindow()
			})
		return lim
	}

	if maxKeys == 0 {
		lim := newWindowLimiter()
		return &ApproxSlidingWindowLimiter{
			maxRate:    maxRate,
			getLimiter: func(_ string) *slidingwindow.Limiter { return lim },
		}, nil
	}

	store, err := lrucache.New[string, *slidingwindow.Limiter](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &ApproxSlidingWindowLimiter{
		maxRate: maxRate,
		getLimiter: func(key string) *slidingwindow.Limiter {
			lim, _ := store.GetOrAdd(key, newWindowLimiter)
			return lim
		},
	}, nil
}

// Allow checks if one more event for the key fits into the sliding window right now.
func (l *ApproxSlidingWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	if l.getLimiter(key).Allow() {
		return true, 0, nil
	}
	now := time.Now()
	retryAfter = now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now)
	return false, retryAfter, nil
}
