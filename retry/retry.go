/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry provides backoff policies and a helper to run an operation with retries.
// The event delivery worker uses it to retry failed sink calls between batches.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable tells whether the given error is transient and the operation may be retried,
// as opposed to a persistent error that will not go away on its own.
type IsRetryable func(error) bool

// RetryableFunc is an operation that may be executed repeatedly until it succeeds.
type RetryableFunc func(ctx context.Context) error

// Policy produces backoff strategies for retried operations.
// Each DoWithRetry call gets a fresh backoff.BackOff from the policy.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// The PolicyFunc type is an adapter to allow the use of ordinary functions as retry.Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// DoWithRetry executes fn, retrying failed attempts according to policy p
// until fn succeeds, the policy gives up, or ctx is canceled.
// isRetryable defines which errors lead to a retry attempt (nil retries any error).
// A non-retryable error is returned right away, unwrapped.
// notify, if not nil, is called before each retry with the error and the upcoming delay.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	bctx := backoff.WithContext(p.NewBackOff(), ctx)
	attempt := func() error {
		err := fn(bctx.Context())
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(attempt, bctx, notify)
}

// ExponentialBackoffPolicy retries with exponentially growing delays (1.5 multiplier).
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy with given initial interval and max retry attempt count.
// Zero maxRetryAttempts means unlimited retries.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	return capAttempts(eb, p.maxAttempts)
}

// ConstantBackoffPolicy retries with a fixed delay between attempts.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy with given interval and max retry attempt count.
// Zero maxRetryAttempts means unlimited retries.
func NewConstantBackoffPolicy(interval time.Duration, maxRetryAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	return capAttempts(backoff.NewConstantBackOff(p.interval), p.maxAttempts)
}

func capAttempts(b backoff.BackOff, maxAttempts int) backoff.BackOff {
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(maxAttempts))
	}
	b.Reset()
	return b
}
