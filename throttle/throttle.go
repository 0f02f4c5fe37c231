/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-eventkit/event"
	"github.com/acronis/go-eventkit/internal/ratelimit"
	"github.com/acronis/go-eventkit/log"
)

// Processor throttles events by a per-event key.
// Process returns the event unchanged while the key is within its rate limit
// and nil when the event is suppressed.
type Processor struct {
	keyField   string
	strategy   string
	sampleRate float64
	randFloat  func() float64

	limiter ratelimit.Limiter

	// exact is non-nil only for the sliding window (exact) algorithm.
	// It is the only algorithm that supports idle-key cleanup and utilization reporting.
	exact *ratelimit.SlidingWindowLimiter

	bypass func(key string) bool

	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// Opts represents options for the throttling processor.
type Opts struct {
	// Logger is used for reporting rate limiter errors. No-op logger is used if not specified.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics. No-op collector is used if not specified.
	MetricsCollector MetricsCollector

	// RandFloat returns a pseudo-random number in [0, 1) for the "sample" strategy.
	// math/rand.Float64 is used if not specified.
	RandFloat func() float64
}

// New creates a new throttling processor. Configuration is validated, and all errors
// (out-of-range rates, unknown algorithm or strategy names) are reported here, never at Process time.
func New(cfg *Config) (*Processor, error) {
	return NewWithOpts(cfg, Opts{})
}

// NewWithOpts is a more configurable version of the New.
func NewWithOpts(cfg *Config, opts Opts) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxKeys := cfg.MaxTrackedKeys
	if maxKeys == 0 {
		maxKeys = DefaultMaxTrackedKeys
	}
	maxRate := ratelimit.Rate{Count: cfg.Rate.Count, Duration: cfg.Rate.Duration}

	var limiter ratelimit.Limiter
	var exact *ratelimit.SlidingWindowLimiter
	var err error
	switch cfg.Alg {
	case "", AlgSlidingWindow:
		exact, err = ratelimit.NewSlidingWindowLimiter(maxRate, maxKeys)
		limiter = exact
	case AlgSlidingWindowApprox:
		limiter, err = ratelimit.NewApproxSlidingWindowLimiter(maxRate, maxKeys)
	case AlgLeakyBucket:
		limiter, err = ratelimit.NewLeakyBucketLimiter(maxRate, cfg.BurstLimit, maxKeys)
	default:
		err = fmt.Errorf("unknown rate limit alg %q", cfg.Alg)
	}
	if err != nil {
		return nil, err
	}

	bypass, err := makeBypassFunc(cfg.IncludedKeys, cfg.ExcludedKeys)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	randFloat := opts.RandFloat
	if randFloat == nil {
		randFloat = rand.Float64
	}

	return &Processor{
		keyField:         cfg.KeyField,
		strategy:         cfg.Strategy,
		sampleRate:       cfg.SampleRate,
		randFloat:        randFloat,
		limiter:          limiter,
		exact:            exact,
		bypass:           bypass,
		logger:           logger,
		metricsCollector: metricsCollector,
	}, nil
}

// Process applies the rate limit to the event's key and decides the event's fate.
// It returns the event unchanged if it's within the limit, bypassed, or sampled through,
// and nil if the event is suppressed. Process never blocks and is safe for concurrent use.
func (p *Processor) Process(ev event.Event) event.Event {
	key := p.eventKey(ev)

	if p.bypass != nil && p.bypass(key) {
		p.metricsCollector.IncAllowed()
		return ev
	}

	allow, _, err := p.limiter.Allow(context.Background(), key)
	if p.exact != nil {
		p.metricsCollector.SetTrackedKeys(p.exact.TrackedKeys())
	}
	if err != nil {
		// A failing limiter must not lose events, let the event pass.
		p.logger.Error("rate limiter failed, event passed through", log.String("key", key), log.Error(err))
		p.metricsCollector.IncAllowed()
		return ev
	}
	if allow {
		p.metricsCollector.IncAllowed()
		return ev
	}

	if p.strategy == StrategySample && p.randFloat() < p.sampleRate {
		p.metricsCollector.IncSampledThrough()
		return ev
	}

	p.metricsCollector.IncThrottled()
	return nil
}

// CleanupExpiredEntries removes keys that have no events within the sliding window
// and returns the number of removed keys. Only the sliding window (exact) algorithm
// tracks idle keys, for other algorithms it's a no-op.
// Implements cleanup.Target interface.
func (p *Processor) CleanupExpiredEntries(now time.Time) int {
	if p.exact == nil {
		return 0
	}
	removed := p.exact.CleanupExpired(now)
	p.metricsCollector.SetTrackedKeys(p.exact.TrackedKeys())
	return removed
}

// Utilization returns the fraction ([0, 1]) of the key-tracking capacity currently in use.
// Always 0 for algorithms other than the sliding window (exact).
func (p *Processor) Utilization() float64 {
	if p.exact == nil {
		return 0
	}
	return p.exact.Utilization()
}

func (p *Processor) eventKey(ev event.Event) string {
	if p.keyField == "" {
		return DefaultKey
	}
	key, ok := ev.StringField(p.keyField)
	if !ok || key == "" {
		return DefaultKey
	}
	return key
}

func makeBypassFunc(includedKeys, excludedKeys []string) (func(key string) bool, error) {
	if len(includedKeys) == 0 && len(excludedKeys) == 0 {
		return nil, nil
	}
	if len(includedKeys) != 0 && len(excludedKeys) != 0 {
		return nil, fmt.Errorf("excluded and included keys cannot be used together")
	}
	keys, bypassOnMatch := excludedKeys, true
	if len(includedKeys) != 0 {
		keys, bypassOnMatch = includedKeys, false
	}
	compiledKeys := make([]func(s string) bool, 0, len(keys))
	for _, key := range keys {
		compiledKeys = append(compiledKeys, glob.Compile(key))
	}
	return func(key string) bool {
		keyFound := false
		for i := range compiledKeys {
			if compiledKeys[i](key) {
				keyFound = true
				break
			}
		}
		return keyFound == bypassOnMatch
	}, nil
}
