/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetry(t *testing.T) {
	t.Run("succeeds after retries", func(t *testing.T) {
		sinkErr := errors.New("sink unavailable")
		var calls, notifies int
		notify := func(err error, delay time.Duration) {
			require.ErrorIs(t, err, sinkErr)
			notifies++
		}
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 3), nil, notify,
			func(ctx context.Context) error {
				calls++
				if calls < 3 {
					return sinkErr
				}
				return nil
			})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
		require.Equal(t, 2, notifies)
	})

	t.Run("attempts are exhausted", func(t *testing.T) {
		sinkErr := errors.New("sink unavailable")
		var calls int
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 2), nil, nil,
			func(ctx context.Context) error {
				calls++
				return sinkErr
			})
		require.ErrorIs(t, err, sinkErr)
		require.Equal(t, 3, calls) // first call plus two retries
	})

	t.Run("non-retryable error is returned right away", func(t *testing.T) {
		persistentErr := errors.New("malformed batch")
		isRetryable := func(err error) bool {
			return !errors.Is(err, persistentErr)
		}
		var calls int
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 10), isRetryable, nil,
			func(ctx context.Context) error {
				calls++
				return persistentErr
			})
		require.ErrorIs(t, err, persistentErr)
		require.Equal(t, 1, calls)
	})

	t.Run("context cancellation interrupts waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		start := time.Now()
		err := DoWithRetry(ctx, NewConstantBackoffPolicy(time.Minute, 0), nil, nil,
			func(ctx context.Context) error {
				cancel()
				return errors.New("sink unavailable")
			})
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, time.Since(start), time.Minute)
	})

	t.Run("exponential policy limits attempts", func(t *testing.T) {
		sinkErr := errors.New("sink unavailable")
		var calls int
		err := DoWithRetry(context.Background(), NewExponentialBackoffPolicy(time.Millisecond, 1), nil, nil,
			func(ctx context.Context) error {
				calls++
				return sinkErr
			})
		require.ErrorIs(t, err, sinkErr)
		require.Equal(t, 2, calls)
	})
}

func TestPolicyFunc(t *testing.T) {
	p := PolicyFunc(func() backoff.BackOff { return &backoff.StopBackOff{} })
	var calls int
	err := DoWithRetry(context.Background(), p, nil, nil, func(ctx context.Context) error {
		calls++
		return errors.New("sink unavailable")
	})
	require.EqualError(t, err, "sink unavailable")
	require.Equal(t, 1, calls)
}
