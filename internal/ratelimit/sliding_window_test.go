/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

// SlidingWindowLimiterTestSuite contains tests for SlidingWindowLimiter
type SlidingWindowLimiterTestSuite struct {
	suite.Suite
}

func TestSlidingWindowLimiter(t *testing.T) {
	suite.Run(t, new(SlidingWindowLimiterTestSuite))
}

func (ts *SlidingWindowLimiterTestSuite) TestNewValidation() {
	_, err := NewSlidingWindowLimiter(Rate{Count: 0, Duration: time.Second}, 100)
	ts.Error(err)
	_, err = NewSlidingWindowLimiter(Rate{Count: 10, Duration: 0}, 100)
	ts.Error(err)
	_, err = NewSlidingWindowLimiter(Rate{Count: 10, Duration: time.Second}, -1)
	ts.Error(err)
}

func (ts *SlidingWindowLimiterTestSuite) TestAllowSequential() {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 2, Duration: time.Second}, 100)
	ts.NoError(err)

	ctx := context.Background()
	key := "test-key"

	// First request should be allowed
	allow, retryAfter, err := limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)
	ts.Equal(time.Duration(0), retryAfter)

	// Second request should be allowed
	allow, retryAfter, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)
	ts.Equal(time.Duration(0), retryAfter)

	// Third request should be rate limited
	allow, retryAfter, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.False(allow)
	ts.Greater(retryAfter, time.Duration(0))
	ts.LessOrEqual(retryAfter, time.Second)
}

func (ts *SlidingWindowLimiterTestSuite) TestKeysAreIndependent() {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 1, Duration: time.Second}, 100)
	ts.NoError(err)

	ctx := context.Background()

	allow, _, err := limiter.Allow(ctx, "key-a")
	ts.NoError(err)
	ts.True(allow)

	allow, _, err = limiter.Allow(ctx, "key-a")
	ts.NoError(err)
	ts.False(allow)

	allow, _, err = limiter.Allow(ctx, "key-b")
	ts.NoError(err)
	ts.True(allow, "limit on one key must not affect another")
}

func (ts *SlidingWindowLimiterTestSuite) TestSingleSharedWindow() {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 2, Duration: time.Second}, 0)
	ts.NoError(err)

	ctx := context.Background()

	allow, _, err := limiter.Allow(ctx, "key-a")
	ts.NoError(err)
	ts.True(allow)
	allow, _, err = limiter.Allow(ctx, "key-b")
	ts.NoError(err)
	ts.True(allow)

	allow, _, err = limiter.Allow(ctx, "key-c")
	ts.NoError(err)
	ts.False(allow, "all keys must share the single window")
	ts.Equal(0, limiter.TrackedKeys())
}

func (ts *SlidingWindowLimiterTestSuite) TestWindowSlides() {
	// Drive a single window log directly to get deterministic timing.
	w := &windowLog{}
	maxRate := Rate{Count: 2, Duration: time.Second}
	base := time.Now()

	allow, _ := w.allow(base, maxRate)
	ts.True(allow)
	allow, _ = w.allow(base.Add(100*time.Millisecond), maxRate)
	ts.True(allow)

	allow, retryAfter := w.allow(base.Add(200*time.Millisecond), maxRate)
	ts.False(allow)
	ts.Equal(800*time.Millisecond, retryAfter, "slot frees when the oldest event slides out")

	// Exactly one window after the oldest event, it is already out.
	allow, _ = w.allow(base.Add(1100*time.Millisecond), maxRate)
	ts.True(allow)
	ts.Len(w.timestamps, 2, "the event at base+100ms is on the edge and dropped too, the one at base+1100ms recorded")
}

func (ts *SlidingWindowLimiterTestSuite) TestDeniedEventsAreNotRecorded() {
	w := &windowLog{}
	maxRate := Rate{Count: 1, Duration: time.Second}
	base := time.Now()

	allow, _ := w.allow(base, maxRate)
	ts.True(allow)

	// A storm of denied events must not extend the limited period.
	for i := 1; i <= 5; i++ {
		allow, _ = w.allow(base.Add(time.Duration(i)*100*time.Millisecond), maxRate)
		ts.False(allow)
	}
	ts.Len(w.timestamps, 1)

	allow, _ = w.allow(base.Add(1100*time.Millisecond), maxRate)
	ts.True(allow)
}

func (ts *SlidingWindowLimiterTestSuite) TestExactUnderConcurrency() {
	const maxCount = 5
	limiter, err := NewSlidingWindowLimiter(Rate{Count: maxCount, Duration: 10 * time.Second}, 100)
	ts.NoError(err)

	ctx := context.Background()
	var allowedCount atomic.Int32
	var wg sync.WaitGroup

	const numGoroutines = maxCount * 10
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			allow, _, allowErr := limiter.Allow(ctx, "stormy-key")
			if allowErr == nil && allow {
				allowedCount.Inc()
			}
		}()
	}
	wg.Wait()

	ts.Equal(int32(maxCount), allowedCount.Load(), "exactly maxRate.Count events must pass")
}

func (ts *SlidingWindowLimiterTestSuite) TestKeyStoreIsBounded() {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 1, Duration: time.Second}, 2)
	ts.NoError(err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _, allowErr := limiter.Allow(ctx, fmt.Sprintf("key-%d", i))
		ts.NoError(allowErr)
	}
	ts.Equal(2, limiter.TrackedKeys())
	ts.Equal(1.0, limiter.Utilization())
}

func (ts *SlidingWindowLimiterTestSuite) TestCleanupExpired() {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 2, Duration: time.Second}, 100)
	ts.NoError(err)

	ctx := context.Background()
	now := time.Now()
	_, _, err = limiter.Allow(ctx, "key-a")
	ts.NoError(err)
	_, _, err = limiter.Allow(ctx, "key-b")
	ts.NoError(err)
	ts.Equal(2, limiter.TrackedKeys())

	ts.Equal(0, limiter.CleanupExpired(now), "in-window keys must be kept")
	ts.Equal(2, limiter.TrackedKeys())

	ts.Equal(2, limiter.CleanupExpired(now.Add(2*time.Second)), "idle keys must be dropped")
	ts.Equal(0, limiter.TrackedKeys())
	ts.Equal(0.0, limiter.Utilization())
}
