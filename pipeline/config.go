/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-eventkit/config"
	"github.com/acronis/go-eventkit/dedup"
	"github.com/acronis/go-eventkit/eventqueue"
	"github.com/acronis/go-eventkit/mask"
	"github.com/acronis/go-eventkit/throttle"
)

// Default values of the configuration parameters.
const (
	DefaultCircuitBreakerFailureThreshold = 5
	DefaultCircuitBreakerRecoveryTimeout  = 30 * time.Second
	DefaultStatsLogInterval               = time.Minute
)

const cfgKeyMask = "mask"

// MaskConfig is a configuration of the secret-masking stage.
// Apart from Enabled, it carries the same parameters as mask.Config, on the same nesting level.
type MaskConfig struct {
	// Enabled turns the masking stage on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	mask.Config `mapstructure:",squash" yaml:",inline"`
}

// DedupConfig is a configuration of the deduplication stage.
// Apart from Enabled, it carries the same parameters as dedup.Config, on the same nesting level.
type DedupConfig struct {
	// Enabled turns the deduplication stage on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	dedup.Config `mapstructure:",squash" yaml:",inline"`
}

// ThrottleConfig is a configuration of the throttling stage.
// Apart from Enabled, it carries the same parameters as throttle.Config, on the same nesting level.
type ThrottleConfig struct {
	// Enabled turns the throttling stage on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	throttle.Config `mapstructure:",squash" yaml:",inline"`
}

// CircuitBreakerConfig is a configuration of the circuit breaker guarding the sink.
type CircuitBreakerConfig struct {
	// Enabled turns the circuit breaker on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// FailureThreshold is a number of consecutive delivery failures after which the breaker opens.
	// DefaultCircuitBreakerFailureThreshold is used if it's not specified.
	FailureThreshold int `mapstructure:"failureThreshold" yaml:"failureThreshold" json:"failureThreshold"`

	// RecoveryTimeout is how long the breaker stays open before probing the sink again.
	// DefaultCircuitBreakerRecoveryTimeout is used if it's not specified.
	RecoveryTimeout config.TimeDuration `mapstructure:"recoveryTimeout" yaml:"recoveryTimeout" json:"recoveryTimeout"`
}

// Validate validates configuration.
func (c *CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold < 0 {
		return fmt.Errorf("failure threshold should be >= 0, got %d", c.FailureThreshold)
	}
	if c.RecoveryTimeout < 0 {
		return fmt.Errorf("recovery timeout should be >= 0, got %s", c.RecoveryTimeout)
	}
	return nil
}

// SinkRateLimitConfig is a configuration of egress rate limiting of batch deliveries to the sink.
type SinkRateLimitConfig struct {
	// Enabled turns the egress rate limiting on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Rate is a maximum sustained number of events delivered to the sink per second.
	// It must be specified when the rate limiting is enabled.
	Rate int `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Burst is a maximum number of events admitted to the sink at once.
	// It must not be less than the delivery batch size. The rate value is used if it's not specified.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

	// WaitTimeout is a maximum time a delivery waits to be admitted by the limiter.
	// eventqueue.DefaultRateLimitingWaitTimeout is used if it's not specified.
	WaitTimeout config.TimeDuration `mapstructure:"waitTimeout" yaml:"waitTimeout" json:"waitTimeout"`
}

// Validate validates configuration.
func (c *SinkRateLimitConfig) Validate() error {
	if c.Enabled && c.Rate < 1 {
		return fmt.Errorf("rate should be >= 1 when rate limiting is enabled, got %d", c.Rate)
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst should be >= 0, got %d", c.Burst)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait timeout should be >= 0, got %s", c.WaitTimeout)
	}
	return nil
}

// CleanupConfig is a configuration of periodic cleanup
// of the expired deduplication and throttling state.
type CleanupConfig struct {
	// Interval is how often a cleanup pass runs. cleanup.DefaultInterval is used if it's not specified.
	Interval config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`

	// MaxDuration is a hard deadline for a single cleanup pass.
	// cleanup.DefaultMaxDuration is used if it's not specified.
	MaxDuration config.TimeDuration `mapstructure:"maxDuration" yaml:"maxDuration" json:"maxDuration"`

	// ThresholdRatio triggers an out-of-schedule pass when the store utilization
	// reaches it. Zero disables utilization-based triggering.
	ThresholdRatio float64 `mapstructure:"thresholdRatio" yaml:"thresholdRatio" json:"thresholdRatio"`
}

// Validate validates configuration.
func (c *CleanupConfig) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval should be >= 0, got %s", c.Interval)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration should be >= 0, got %s", c.MaxDuration)
	}
	if c.ThresholdRatio < 0 || c.ThresholdRatio > 1 {
		return fmt.Errorf("threshold ratio should be in range [0, 1], got %v", c.ThresholdRatio)
	}
	return nil
}

// Config represents a configuration of the whole event pipeline.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
//
// Disabled stages are not validated, a section may stay partially filled
// while the stage is turned off.
type Config struct {
	// Queue is a configuration of the event queue and its delivery worker.
	Queue eventqueue.Config `mapstructure:"queue" yaml:"queue" json:"queue"`

	// Mask is a configuration of the secret-masking stage.
	Mask MaskConfig `mapstructure:"mask" yaml:"mask" json:"mask"`

	// Dedup is a configuration of the deduplication stage.
	Dedup DedupConfig `mapstructure:"dedup" yaml:"dedup" json:"dedup"`

	// Throttle is a configuration of the throttling stage.
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle" json:"throttle"`

	// CircuitBreaker is a configuration of the circuit breaker guarding the sink.
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker" yaml:"circuitBreaker" json:"circuitBreaker"`

	// SinkRateLimit is a configuration of egress rate limiting of deliveries to the sink.
	SinkRateLimit SinkRateLimitConfig `mapstructure:"sinkRateLimit" yaml:"sinkRateLimit" json:"sinkRateLimit"`

	// Cleanup is a configuration of periodic cleanup of the deduplication and throttling state.
	Cleanup CleanupConfig `mapstructure:"cleanup" yaml:"cleanup" json:"cleanup"`

	// StatsLogInterval is how often the pipeline logs its stats (queue length, store
	// utilization, breaker state). DefaultStatsLogInterval is used if it's not specified.
	StatsLogInterval config.TimeDuration `mapstructure:"statsLogInterval" yaml:"statsLogInterval" json:"statsLogInterval"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts configOptions
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		Mask:      MaskConfig{Config: *mask.NewConfig()},
		keyPrefix: opts.keyPrefix,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the pipeline in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	c.Mask.Config.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyMask))
}

// Set sets pipeline configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := dp.Unmarshal(c, func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.DecodeHook = MapstructureDecodeHook()
	}); err != nil {
		return err
	}
	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if c.Mask.Enabled {
		if err := c.Mask.Config.Validate(); err != nil {
			return fmt.Errorf("mask: %w", err)
		}
	}
	if c.Dedup.Enabled {
		if err := c.Dedup.Config.Validate(); err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
	}
	if c.Throttle.Enabled {
		if err := c.Throttle.Config.Validate(); err != nil {
			return fmt.Errorf("throttle: %w", err)
		}
	}
	if err := c.CircuitBreaker.Validate(); err != nil {
		return fmt.Errorf("circuitBreaker: %w", err)
	}
	if err := c.SinkRateLimit.Validate(); err != nil {
		return fmt.Errorf("sinkRateLimit: %w", err)
	}
	if err := c.Cleanup.Validate(); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if c.StatsLogInterval < 0 {
		return fmt.Errorf("stats log interval should be >= 0, got %s", c.StatsLogInterval)
	}
	return nil
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure
// to handle custom types of all nested configuration sections.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		eventqueue.MapstructureDecodeHook(),
		throttle.MapstructureDecodeHook(),
	)
}
