/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dedup

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-eventkit/config"
	"github.com/acronis/go-eventkit/event"
)

// DefaultMaxTrackedSignatures is a default value of maximum tracked signatures.
const DefaultMaxTrackedSignatures = 10000

// Config represents a configuration for event deduplication.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Fields contains names of the event fields that participate in the event signature.
	// Names may be exact or glob patterns (e.g. "ctx.*").
	// An empty list means the whole event is signed.
	Fields []string `mapstructure:"fields" yaml:"fields" json:"fields"`

	// Window is a period within which events with an already seen signature
	// are suppressed as duplicates.
	Window config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`

	// HashAlg is an algorithm for computing signatures ("xxhash", "sha256", "fnv").
	// xxhash is used if not specified.
	HashAlg event.HashAlg `mapstructure:"hashAlg" yaml:"hashAlg" json:"hashAlg"`

	// MaxTrackedSignatures is a maximum number of signatures tracked at the same time.
	// When the bound is reached, the least recently seen signature is evicted.
	// DefaultMaxTrackedSignatures is used if it's not specified.
	MaxTrackedSignatures int `mapstructure:"maxTrackedSignatures" yaml:"maxTrackedSignatures" json:"maxTrackedSignatures"`

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

// SetProviderDefaults sets default configuration values for deduplication in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets deduplication configuration values from config.DataProvider.
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
	if c.Window <= 0 {
		return fmt.Errorf("window should be positive, got %s", c.Window)
	}
	switch c.HashAlg {
	case "", event.HashAlgXXHash, event.HashAlgSHA256, event.HashAlgFNV:
	default:
		return fmt.Errorf("unknown hash algorithm %q", c.HashAlg)
	}
	if c.MaxTrackedSignatures < 0 {
		return fmt.Errorf("maximum signatures should be >= 0, got %d", c.MaxTrackedSignatures)
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
