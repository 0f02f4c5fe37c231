/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package mask

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-eventkit/config"
)

// Format defines possible values for the well-known secret formats.
type Format string

// Well-known secret formats for which masking regexps are derived from the field name.
const (
	FormatHTTPHeader Format = "http_header"
	FormatJSON       Format = "json"
	FormatURLEncoded Format = "urlencoded"
)

// MaskConfig is a configuration for a single mask.
type MaskConfig struct {
	RegExp string `mapstructure:"regexp" yaml:"regexp" json:"regexp"`
	Mask   string `mapstructure:"mask" yaml:"mask" json:"mask"`
}

// RuleConfig is a configuration for a single masking rule.
type RuleConfig struct {
	Field   string       `mapstructure:"field" yaml:"field" json:"field"`
	Formats []Format     `mapstructure:"formats" yaml:"formats" json:"formats"`
	Masks   []MaskConfig `mapstructure:"masks" yaml:"masks" json:"masks"`
}

// DefaultRules is a list of masking rules that are used when Config.UseDefaultRules is enabled.
var DefaultRules = []RuleConfig{
	{
		Field:   "Authorization",
		Formats: []Format{FormatHTTPHeader},
	},
	{
		Field:   "password",
		Formats: []Format{FormatJSON, FormatURLEncoded},
	},
	{
		Field:   "client_secret",
		Formats: []Format{FormatJSON, FormatURLEncoded},
	},
	{
		Field:   "access_token",
		Formats: []Format{FormatJSON, FormatURLEncoded},
	},
	{
		Field:   "refresh_token",
		Formats: []Format{FormatJSON, FormatURLEncoded},
	},
	{
		Field:   "id_token",
		Formats: []Format{FormatJSON, FormatURLEncoded},
	},
	{
		Field:   "assertion",
		Formats: []Format{FormatJSON, FormatURLEncoded},
	},
}

const cfgKeyUseDefaultRules = "useDefaultRules"

// Config represents a configuration for the masking processor.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// UseDefaultRules adds DefaultRules to the configured ones. Enabled by default.
	UseDefaultRules bool `mapstructure:"useDefaultRules" yaml:"useDefaultRules" json:"useDefaultRules"`

	// Rules is a list of custom masking rules.
	Rules []RuleConfig `mapstructure:"rules" yaml:"rules" json:"rules"`

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
	return &Config{UseDefaultRules: true, keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the masking processor in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyUseDefaultRules, true)
}

// Set sets masking processor configuration values from config.DataProvider.
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
	for i := range c.Rules {
		rule := &c.Rules[i]
		if rule.Field == "" {
			if len(rule.Formats) != 0 {
				return fmt.Errorf("rule #%d: field should not be empty when formats are specified", i)
			}
			if len(rule.Masks) == 0 {
				return fmt.Errorf("rule #%d: field or masks should be specified", i)
			}
		}
		if _, err := newMasks(*rule); err != nil {
			return fmt.Errorf("rule #%d: %w", i, err)
		}
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
