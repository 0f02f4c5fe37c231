/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package eventqueue

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-eventkit/config"
)

// Overflow strategies for events arriving when the queue is full.
const (
	OverflowStrategyDrop   = "drop"
	OverflowStrategyBlock  = "block"
	OverflowStrategySample = "sample"
)

// Retry policies for failed batch deliveries.
const (
	RetryPolicyConstant    = "constant"
	RetryPolicyExponential = "exponential"
)

// Default values of the configuration parameters.
const (
	DefaultCapacity     = 10000
	DefaultBatchSize    = 100
	DefaultBatchTimeout = time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = time.Second
)

// NoRetries should be used as Config.MaxRetries value
// when a failed batch must be dropped right after the first delivery attempt.
const NoRetries = -1

// Config represents a configuration for the event queue and its delivery worker.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Capacity is a maximum number of events the queue may buffer.
	// DefaultCapacity is used if it's not specified.
	Capacity int `mapstructure:"capacity" yaml:"capacity" json:"capacity"`

	// OverflowStrategy determines what happens with events arriving when the queue is full:
	// "drop" (default) discards them without blocking, "block" suspends the producer
	// until space frees, "sample" sheds them probabilistically before the capacity check.
	OverflowStrategy string `mapstructure:"overflowStrategy" yaml:"overflowStrategy" json:"overflowStrategy"`

	// SamplingRate is a probability ([0, 1]) with which an event is admitted to the capacity
	// check under the "sample" strategy. Events losing the draw are discarded immediately.
	SamplingRate float64 `mapstructure:"samplingRate" yaml:"samplingRate" json:"samplingRate"`

	// BatchSize is a maximum number of events delivered to the sink in one batch.
	// DefaultBatchSize is used if it's not specified.
	BatchSize int `mapstructure:"batchSize" yaml:"batchSize" json:"batchSize"`

	// BatchTimeout is how long the worker waits for a batch to fill up before
	// delivering it partially. DefaultBatchTimeout is used if it's not specified.
	BatchTimeout config.TimeDuration `mapstructure:"batchTimeout" yaml:"batchTimeout" json:"batchTimeout"`

	// MaxRetries is how many times a failed batch delivery is retried before the batch
	// is dropped. DefaultMaxRetries is used if it's not specified,
	// NoRetries drops a failed batch right after the first attempt.
	MaxRetries int `mapstructure:"maxRetries" yaml:"maxRetries" json:"maxRetries"`

	// RetryDelay is a delay before the next delivery attempt. For the "exponential"
	// retry policy it's the initial delay. DefaultRetryDelay is used if it's not specified.
	RetryDelay config.TimeDuration `mapstructure:"retryDelay" yaml:"retryDelay" json:"retryDelay"`

	// RetryPolicy is a backoff policy for delivery retries:
	// "constant" (default) or "exponential".
	RetryPolicy string `mapstructure:"retryPolicy" yaml:"retryPolicy" json:"retryPolicy"`

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
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the queue in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets queue configuration values from config.DataProvider.
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
	if c.Capacity < 0 {
		return fmt.Errorf("capacity should be >= 0, got %d", c.Capacity)
	}
	switch c.OverflowStrategy {
	case "", OverflowStrategyDrop, OverflowStrategyBlock, OverflowStrategySample:
	default:
		return fmt.Errorf("unknown overflow strategy %q", c.OverflowStrategy)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate should be in range [0, 1], got %v", c.SamplingRate)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size should be >= 0, got %d", c.BatchSize)
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("batch timeout should be >= 0, got %s", c.BatchTimeout)
	}
	if c.MaxRetries < NoRetries {
		return fmt.Errorf("max retries should be >= %d, got %d", NoRetries, c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay should be >= 0, got %s", c.RetryDelay)
	}
	switch c.RetryPolicy {
	case "", RetryPolicyConstant, RetryPolicyExponential:
	default:
		return fmt.Errorf("unknown retry policy %q", c.RetryPolicy)
	}
	return nil
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure to handle custom types.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
