/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
)

// Loader reads configuration data from a file or a reader into its DataProvider
// and populates the passed configuration objects in two phases:
// defaults first (SetProviderDefaults) and then actual values (Set).
// Configs implementing KeyPrefixProvider are addressed under their key prefix,
// which lets several sections live in one configuration file.
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader creates a Loader backed by a fresh ViperAdapter with
// environment variable overrides enabled under the given prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a Loader on top of the given data provider.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// LoadFromFile reads configuration data from the file and populates the passed configuration objects.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.load(append([]Config{cfg}, cfgs...))
}

// LoadFromReader reads configuration data from the reader and populates the passed configuration objects.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.load(append([]Config{cfg}, cfgs...))
}

// load applies defaults for all configs before setting any values.
// Defaults of a later config must be visible while an earlier one is set,
// otherwise cross-section defaults (nested sections delegating to each other)
// would depend on the argument order.
func (l *Loader) load(cfgs []Config) error {
	for _, cfg := range cfgs {
		cfg.SetProviderDefaults(l.providerFor(cfg))
	}
	for _, cfg := range cfgs {
		if err := cfg.Set(l.providerFor(cfg)); err != nil {
			return err
		}
	}
	return nil
}

// providerFor narrows the data provider to the config's key prefix, if it has a non-empty one.
func (l *Loader) providerFor(cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(l.DataProvider, kp.KeyPrefix())
	}
	return l.DataProvider
}
