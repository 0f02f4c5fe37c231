/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
	"strings"
	"time"
)

// KeyPrefixedDataProvider is a DataProvider implementation that addresses all keys
// under a fixed prefix of the delegate provider. It is the mechanism behind nested
// configuration sections: a pipeline config placed under "eventPipeline" reads
// "queue.capacity" while the underlying provider sees "eventPipeline.queue.capacity".
// Providers may be stacked, prefixes compose left to right.
type KeyPrefixedDataProvider struct {
	delegate  DataProvider
	keyPrefix string
}

var _ DataProvider = (*KeyPrefixedDataProvider)(nil)

// NewKeyPrefixedDataProvider creates a new KeyPrefixedDataProvider.
func NewKeyPrefixedDataProvider(delegate DataProvider, keyPrefix string) *KeyPrefixedDataProvider {
	return &KeyPrefixedDataProvider{delegate: delegate, keyPrefix: keyPrefix}
}

// makeKey trims the leading dot so an empty prefix (or an empty key,
// as in Unmarshal) still yields a valid delegate key.
func (kp *KeyPrefixedDataProvider) makeKey(key string) string {
	return strings.Trim(kp.keyPrefix+"."+key, ".")
}

// UseEnvVars enables reading configuration parameters from environment variables
// on the delegate provider. The env prefix is not affected by the key prefix.
func (kp *KeyPrefixedDataProvider) UseEnvVars(prefix string) {
	kp.delegate.UseEnvVars(prefix)
}

// Set sets the value for the prefixed key in the override register.
func (kp *KeyPrefixedDataProvider) Set(key string, value interface{}) {
	kp.delegate.Set(kp.makeKey(key), value)
}

// SetDefault sets the default value for the prefixed key.
func (kp *KeyPrefixedDataProvider) SetDefault(key string, value interface{}) {
	kp.delegate.SetDefault(kp.makeKey(key), value)
}

// IsSet reports whether the prefixed key is present in any of the data locations.
func (kp *KeyPrefixedDataProvider) IsSet(key string) bool {
	return kp.delegate.IsSet(kp.makeKey(key))
}

// Get retrieves the raw value for the prefixed key.
func (kp *KeyPrefixedDataProvider) Get(key string) interface{} {
	return kp.delegate.Get(kp.makeKey(key))
}

// SetFromFile loads configuration data from the file at path into the delegate provider.
func (kp *KeyPrefixedDataProvider) SetFromFile(path string, dataType DataType) error {
	return kp.delegate.SetFromFile(path, dataType)
}

// SetFromReader loads configuration data from the reader into the delegate provider.
func (kp *KeyPrefixedDataProvider) SetFromReader(reader io.Reader, dataType DataType) error {
	return kp.delegate.SetFromReader(reader, dataType)
}

// SaveToFile writes the delegate's accumulated configuration to the file at path.
func (kp *KeyPrefixedDataProvider) SaveToFile(path string, dataType DataType) error {
	return kp.delegate.SaveToFile(path, dataType)
}

// GetString retrieves the value of the prefixed key as a string.
func (kp *KeyPrefixedDataProvider) GetString(key string) (string, error) {
	return kp.delegate.GetString(kp.makeKey(key))
}

// GetBool retrieves the value of the prefixed key as a bool.
func (kp *KeyPrefixedDataProvider) GetBool(key string) (bool, error) {
	return kp.delegate.GetBool(kp.makeKey(key))
}

// GetInt retrieves the value of the prefixed key as an integer.
func (kp *KeyPrefixedDataProvider) GetInt(key string) (int, error) {
	return kp.delegate.GetInt(kp.makeKey(key))
}

// GetIntSlice retrieves the value of the prefixed key as a slice of integers.
func (kp *KeyPrefixedDataProvider) GetIntSlice(key string) ([]int, error) {
	return kp.delegate.GetIntSlice(kp.makeKey(key))
}

// GetFloat32 retrieves the value of the prefixed key as a float32.
func (kp *KeyPrefixedDataProvider) GetFloat32(key string) (float32, error) {
	return kp.delegate.GetFloat32(kp.makeKey(key))
}

// GetFloat64 retrieves the value of the prefixed key as a float64.
func (kp *KeyPrefixedDataProvider) GetFloat64(key string) (float64, error) {
	return kp.delegate.GetFloat64(kp.makeKey(key))
}

// GetStringSlice retrieves the value of the prefixed key as a slice of strings.
func (kp *KeyPrefixedDataProvider) GetStringSlice(key string) ([]string, error) {
	return kp.delegate.GetStringSlice(kp.makeKey(key))
}

// GetStringMapString retrieves the value of the prefixed key as a map
// with string keys and values.
func (kp *KeyPrefixedDataProvider) GetStringMapString(key string) (map[string]string, error) {
	return kp.delegate.GetStringMapString(kp.makeKey(key))
}

// GetDuration retrieves the value of the prefixed key as a duration.
func (kp *KeyPrefixedDataProvider) GetDuration(key string) (time.Duration, error) {
	return kp.delegate.GetDuration(kp.makeKey(key))
}

// GetStringFromSet retrieves the value of the prefixed key as a string
// checked against the given set of allowed values.
func (kp *KeyPrefixedDataProvider) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	return kp.delegate.GetStringFromSet(kp.makeKey(key), set, ignoreCase)
}

// GetSizeInBytes retrieves the value of the prefixed key as a size in bytes.
func (kp *KeyPrefixedDataProvider) GetSizeInBytes(key string) (uint64, error) {
	return kp.delegate.GetSizeInBytes(kp.makeKey(key))
}

// GetBytesCount retrieves the value of the prefixed key as a BytesCount.
func (kp *KeyPrefixedDataProvider) GetBytesCount(key string) (BytesCount, error) {
	return kp.delegate.GetBytesCount(kp.makeKey(key))
}

// Unmarshal unmarshals the whole prefixed subtree into a struct.
func (kp *KeyPrefixedDataProvider) Unmarshal(rawVal interface{}, opts ...DecoderConfigOption) error {
	return kp.delegate.UnmarshalKey(kp.makeKey(""), rawVal, opts...)
}

// UnmarshalKey takes a single prefixed key and unmarshals it into a struct.
func (kp *KeyPrefixedDataProvider) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	return kp.delegate.UnmarshalKey(kp.makeKey(key), rawVal, opts...)
}

// WrapKeyErr wraps the error adding the full prefixed key where it occurred.
func (kp *KeyPrefixedDataProvider) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(kp.makeKey(key), err)
}
