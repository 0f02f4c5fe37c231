/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DataType is a format in which configuration data may be described.
type DataType string

// Data formats supported by the loader.
const (
	DataTypeYAML DataType = "yaml"
	DataTypeJSON DataType = "json"
)

// DataProvider is an interface for providing configuration data
// from different sources (files, readers, environment variables).
// Pipeline sections obtain their values through it, so the same section
// can be filled from a YAML file, a JSON document or env vars.
type DataProvider interface {
	UseEnvVars(prefix string)

	Set(key string, value interface{})
	SetDefault(key string, value interface{})
	IsSet(key string) bool
	Get(key string) interface{}

	SetFromFile(path string, dataType DataType) error
	SetFromReader(reader io.Reader, dataType DataType) error
	SaveToFile(path string, dataType DataType) error

	GetString(key string) (string, error)
	GetBool(key string) (bool, error)
	GetInt(key string) (int, error)
	GetIntSlice(key string) ([]int, error)
	GetFloat32(key string) (float32, error)
	GetFloat64(key string) (float64, error)
	GetStringSlice(key string) ([]string, error)
	GetStringMapString(key string) (map[string]string, error)
	GetDuration(key string) (time.Duration, error)
	GetStringFromSet(key string, set []string, ignoreCase bool) (string, error)
	GetSizeInBytes(key string) (uint64, error)
	GetBytesCount(key string) (BytesCount, error)

	Unmarshal(rawVal interface{}, opts ...DecoderConfigOption) error
	UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error

	WrapKeyErr(key string, err error) error
}

// DecoderConfigOption tweaks the mapstructure.DecoderConfig used by
// Unmarshal and UnmarshalKey.
type DecoderConfigOption func(*mapstructure.DecoderConfig)

// WrapKeyErr annotates err with the configuration key it relates to.
func WrapKeyErr(key string, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}

// WrapKeyErrIfNeeded is like WrapKeyErr but passes nil through untouched.
func WrapKeyErrIfNeeded(key string, err error) error {
	if err == nil {
		return nil
	}
	return WrapKeyErr(key, err)
}

// DataProviderUpdater objects push their current values back into a data provider.
// Together with DataProvider.SaveToFile it allows dumping the effective configuration.
type DataProviderUpdater interface {
	UpdateProviderValues(dp DataProvider)
}

// UpdateDataProvider pushes the values of one or more config structures into dp.
func UpdateDataProvider(dp DataProvider, obj DataProviderUpdater, objs ...DataProviderUpdater) {
	obj.UpdateProviderValues(dp)
	for _, o := range objs {
		o.UpdateProviderValues(dp)
	}
}
