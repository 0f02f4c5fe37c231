/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rate describes the maximum frequency of events: Count events per Duration.
type Rate struct {
	Count    int
	Duration time.Duration
}

// String returns the rate in the "count/duration" form, e.g. "100/1s".
func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Duration)
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}
