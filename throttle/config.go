/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-eventkit/config"
)

// Rate-limiting algorithms.
const (
	AlgSlidingWindow       = "sliding_window"
	AlgSlidingWindowApprox = "sliding_window_approx"
	AlgLeakyBucket         = "leaky_bucket"
)

// Strategies for events that arrive over the limit.
const (
	StrategyDrop   = "drop"
	StrategySample = "sample"
)

// DefaultKey is the throttling key used for events that don't carry the key field.
const DefaultKey = "default"

// DefaultMaxTrackedKeys is a default value of maximum tracked keys.
const DefaultMaxTrackedKeys = 10000

// Config represents a configuration for throttling of events.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// KeyField is a name of the event field which value will be used as a throttling key.
	// Events without this field (and events with a value that is not coercible to a string)
	// are throttled under the DefaultKey. An empty KeyField puts all events under the DefaultKey,
	// which effectively makes the limit global.
	KeyField string `mapstructure:"keyField" yaml:"keyField" json:"keyField"`

	// Rate is the maximum sustained rate of events per key, for example "100/s" or "500/30s".
	Rate RateValue `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Alg is a rate-limiting algorithm. Sliding window (exact) is used if not specified.
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Strategy determines what happens with events that arrive over the limit:
	// "drop" (default) suppresses them, "sample" passes them through with SampleRate probability.
	Strategy string `mapstructure:"strategy" yaml:"strategy" json:"strategy"`

	// SampleRate is a probability ([0, 1]) with which an over-limit event is still passed through.
	// Matters only when Strategy is "sample".
	SampleRate float64 `mapstructure:"sampleRate" yaml:"sampleRate" json:"sampleRate"`

	// BurstLimit is a maximum burst size. Matters only for the "leaky_bucket" algorithm.
	BurstLimit int `mapstructure:"burstLimit" yaml:"burstLimit" json:"burstLimit"`

	// MaxTrackedKeys is a maximum number of keys the limiter may track at the same time.
	// When the bound is reached, the least recently used key is evicted.
	// DefaultMaxTrackedKeys is used if it's not specified.
	MaxTrackedKeys int `mapstructure:"maxTrackedKeys" yaml:"maxTrackedKeys" json:"maxTrackedKeys"`

	// IncludedKeys contains glob patterns of keys that should be throttled.
	// Keys not matching any pattern bypass throttling. Cannot be used together with ExcludedKeys.
	IncludedKeys []string `mapstructure:"includedKeys" yaml:"includedKeys" json:"includedKeys"`

	// ExcludedKeys contains glob patterns of keys that bypass throttling.
	// Cannot be used together with IncludedKeys.
	ExcludedKeys []string `mapstructure:"excludedKeys" yaml:"excludedKeys" json:"excludedKeys"`

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

// SetProviderDefaults sets default configuration values for throttling in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets throttling configuration values from config.DataProvider.
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
	if c.Rate.Count < 1 {
		return fmt.Errorf("rate limit should be >= 1, got %d", c.Rate.Count)
	}
	if c.Rate.Duration <= 0 {
		return fmt.Errorf("rate window should be positive, got %s", c.Rate.Duration)
	}
	switch c.Alg {
	case "", AlgSlidingWindow, AlgSlidingWindowApprox, AlgLeakyBucket:
	default:
		return fmt.Errorf("unknown rate limit alg %q", c.Alg)
	}
	switch c.Strategy {
	case "", StrategyDrop, StrategySample:
	default:
		return fmt.Errorf("unknown throttling strategy %q", c.Strategy)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate should be in range [0, 1], got %v", c.SampleRate)
	}
	if c.BurstLimit < 0 {
		return fmt.Errorf("burst limit should be >= 0, got %d", c.BurstLimit)
	}
	if c.MaxTrackedKeys < 0 {
		return fmt.Errorf("maximum keys should be >= 0, got %d", c.MaxTrackedKeys)
	}
	if len(c.IncludedKeys) != 0 && len(c.ExcludedKeys) != 0 {
		return fmt.Errorf("included and excluded lists cannot be specified at the same time")
	}
	return nil
}

// RateValue represents a rate limit: Count events per Duration.
type RateValue struct {
	Count    int
	Duration time.Duration
}

// String returns a string representation of the rate value.
// Implements fmt.Stringer interface.
func (rv RateValue) String() string {
	if rv.Duration == 0 && rv.Count == 0 {
		return ""
	}
	var d string
	switch rv.Duration {
	case time.Second:
		d = "s"
	case time.Minute:
		d = "m"
	case time.Hour:
		d = "h"
	default:
		d = rv.Duration.String()
	}
	return fmt.Sprintf("%d/%s", rv.Count, d)
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (rv *RateValue) UnmarshalText(text []byte) error {
	return rv.unmarshal(string(text))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (rv *RateValue) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	return rv.unmarshal(text)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (rv *RateValue) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	return rv.unmarshal(text)
}

func (rv *RateValue) unmarshal(rate string) error {
	if rate == "" {
		*rv = RateValue{}
		return nil
	}
	incorrectFormatErr := fmt.Errorf(
		"incorrect format for rate %q, should be N/(s|m|h) or N/<duration>, for example 10/s, 100/m, 500/30s", rate)
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return incorrectFormatErr
	}
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return incorrectFormatErr
	}
	var dur time.Duration
	switch strings.ToLower(parts[1]) {
	case "s":
		dur = time.Second
	case "m":
		dur = time.Minute
	case "h":
		dur = time.Hour
	default:
		if dur, err = time.ParseDuration(parts[1]); err != nil {
			return incorrectFormatErr
		}
	}
	*rv = RateValue{Count: count, Duration: dur}
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (rv RateValue) MarshalText() ([]byte, error) {
	return []byte(rv.String()), nil
}

// MarshalJSON implements the json.Marshaler interface.
func (rv RateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(rv.String())
}

// MarshalYAML implements the yaml.Marshaler interface.
func (rv RateValue) MarshalYAML() (interface{}, error) {
	return rv.String(), nil
}

func mapstructureTrimSpaceStringsHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Kind,
		t reflect.Kind,
		data interface{}) (interface{}, error) {
		if f != reflect.Slice || t != reflect.Slice {
			return data, nil
		}
		switch dt := data.(type) {
		case []string:
			res := make([]string, 0, len(dt))
			for _, s := range dt {
				res = append(res, strings.TrimSpace(s))
			}
			return res, nil
		default:
			return data, nil
		}
	}
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure to handle custom types.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructureTrimSpaceStringsHookFunc(),
	)
}
