/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperAdapter is a DataProvider implementation built on the viper library.
// Typed getters coerce values with the cast package and wrap failures with the
// offending key, so a misconfigured pipeline section reports which parameter is broken.
type ViperAdapter struct {
	viper *viper.Viper
}

var _ DataProvider = (*ViperAdapter)(nil)

// NewViperAdapter creates a new ViperAdapter.
func NewViperAdapter() *ViperAdapter {
	return &ViperAdapter{viper.New()}
}

// UseEnvVars enables reading configuration parameters from environment variables.
// A key is translated by joining path elements with "_", upper-casing and
// prepending the prefix: with prefix "eventkit", the key "queue.maxSize" is
// looked up as EVENTKIT_QUEUE_MAXSIZE.
func (va *ViperAdapter) UseEnvVars(prefix string) {
	va.viper.AutomaticEnv()
	va.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	va.viper.SetEnvPrefix(prefix)
}

// Set sets the value for the key in the override register.
// It takes precedence over values from files, env vars and defaults.
func (va *ViperAdapter) Set(key string, value interface{}) {
	va.viper.Set(key, value)
}

// SetDefault sets the default value for the key.
// The default is used only when no other source provides the key.
func (va *ViperAdapter) SetDefault(key string, value interface{}) {
	va.viper.SetDefault(key, value)
}

// IsSet reports whether the key is present in any of the data locations.
// The check is case-insensitive.
func (va *ViperAdapter) IsSet(key string) bool {
	return va.viper.IsSet(key)
}

// Get retrieves the raw value for the key.
func (va *ViperAdapter) Get(key string) interface{} {
	return va.viper.Get(key)
}

// SetFromFile loads configuration data from the file at path.
func (va *ViperAdapter) SetFromFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	va.viper.SetConfigFile(path)
	return va.viper.ReadInConfig()
}

// SetFromReader loads configuration data from the reader.
func (va *ViperAdapter) SetFromReader(reader io.Reader, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.ReadConfig(reader)
}

// SaveToFile writes the accumulated configuration to the file at path in the given format.
func (va *ViperAdapter) SaveToFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.WriteConfigAs(path)
}

// GetString tries to retrieve the value associated with the key as a string.
func (va *ViperAdapter) GetString(key string) (string, error) {
	res, err := cast.ToStringE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetBool tries to retrieve the value associated with the key as a bool.
func (va *ViperAdapter) GetBool(key string) (bool, error) {
	res, err := cast.ToBoolE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetInt tries to retrieve the value associated with the key as an integer.
func (va *ViperAdapter) GetInt(key string) (int, error) {
	res, err := cast.ToIntE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetIntSlice tries to retrieve the value associated with the key as a slice of integers.
// A missing key yields a nil slice.
func (va *ViperAdapter) GetIntSlice(key string) ([]int, error) {
	val := va.Get(key)
	if val == nil {
		return nil, nil
	}
	res, err := cast.ToIntSliceE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetFloat32 tries to retrieve the value associated with the key as a float32.
func (va *ViperAdapter) GetFloat32(key string) (float32, error) {
	res, err := cast.ToFloat32E(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetFloat64 tries to retrieve the value associated with the key as a float64.
func (va *ViperAdapter) GetFloat64(key string) (float64, error) {
	res, err := cast.ToFloat64E(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetStringSlice tries to retrieve the value associated with the key as a slice of strings.
// A missing key yields a nil slice.
func (va *ViperAdapter) GetStringSlice(key string) ([]string, error) {
	val := va.Get(key)
	if val == nil {
		return nil, nil
	}
	res, err := cast.ToStringSliceE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetStringMapString tries to retrieve the value associated with the key
// as a map with string keys and values. A missing key yields an empty map.
func (va *ViperAdapter) GetStringMapString(key string) (map[string]string, error) {
	val := va.Get(key)
	if val == nil {
		return make(map[string]string), nil
	}
	res, err := cast.ToStringMapStringE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetDuration tries to retrieve the value associated with the key as a duration.
// A missing key yields a zero duration.
func (va *ViperAdapter) GetDuration(key string) (time.Duration, error) {
	val := va.Get(key)
	if val == nil {
		return 0, nil
	}
	res, err := cast.ToDurationE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetStringFromSet tries to retrieve the value associated with the key as a string
// and checks it against the given set of allowed values.
func (va *ViperAdapter) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	str, err := va.GetString(key)
	if err != nil {
		return "", err
	}
	for _, s := range set {
		if (ignoreCase && strings.EqualFold(str, s)) || str == s {
			return str, nil
		}
	}
	return "", WrapKeyErr(key, fmt.Errorf("unknown value %q, should be one of %v", str, set))
}

// GetSizeInBytes tries to retrieve the value associated with the key as a size in bytes.
// Human-readable forms ("64M", "2GB") and k8s power-of-two forms ("128Mi") are accepted.
// A missing key yields zero.
func (va *ViperAdapter) GetSizeInBytes(key string) (uint64, error) {
	sizeStr, err := va.GetString(key)
	if err != nil {
		return 0, err
	}
	if sizeStr == "" {
		return 0, nil
	}
	res, err := bytefmt.ToBytes(stripK8sByteSuffix(sizeStr))
	if err != nil {
		return 0, WrapKeyErr(key, err)
	}
	return res, nil
}

// GetBytesCount tries to retrieve the value associated with the key as a BytesCount.
// Bare integers are taken as bytes, strings are parsed like GetSizeInBytes does.
// A missing key yields zero.
func (va *ViperAdapter) GetBytesCount(key string) (BytesCount, error) {
	val := va.Get(key)
	if val == nil {
		return 0, nil
	}
	switch v := val.(type) {
	case string:
		num, err := bytefmt.ToBytes(stripK8sByteSuffix(v))
		if err != nil {
			return 0, fmt.Errorf("invalid bytes format: %s", v)
		}
		return BytesCount(num), nil

	case int, int8, int16, int32, int64:
		num := cast.ToInt64(val)
		if num < 0 {
			return 0, fmt.Errorf("negative value is not allowed: %d", num)
		}
		return BytesCount(num), nil

	case uint, uint8, uint16, uint32, uint64:
		return BytesCount(cast.ToUint64(val)), nil

	case float32, float64:
		return BytesCount(uint64(cast.ToFloat64(val))), nil

	case BytesCount:
		return v, nil

	default:
		return 0, fmt.Errorf("unsupported type for BytesCount: %T", val)
	}
}

// Unmarshal unmarshals the whole config into a struct.
func (va *ViperAdapter) Unmarshal(rawVal interface{}, opts ...DecoderConfigOption) error {
	return va.viper.Unmarshal(rawVal, toViperDecoderOpts(opts)...)
}

// UnmarshalKey takes a single key and unmarshals it into a struct.
func (va *ViperAdapter) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	return WrapKeyErrIfNeeded(key, va.viper.UnmarshalKey(key, rawVal, toViperDecoderOpts(opts)...))
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func (va *ViperAdapter) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(key, err)
}

func toViperDecoderOpts(opts []DecoderConfigOption) []viper.DecoderConfigOption {
	options := make([]viper.DecoderConfigOption, len(opts))
	for i, opt := range opts {
		options[i] = viper.DecoderConfigOption(opt)
	}
	return options
}
