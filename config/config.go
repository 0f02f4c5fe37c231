/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import "reflect"

// Config is a common interface for configuration objects that may be used by Loader.
// All configuration sections of the library (queue, throttling, masking and so on)
// implement it.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is implemented by configuration objects whose keys live
// under a prefix. Loader and the CallSet*ForFields helpers narrow the data
// provider to that prefix before reading values.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// CallSetProviderDefaultsForFields finds all initialized (non-nil) fields of the passed object
// that implement Config interface and calls SetProviderDefaults() method for each of them.
func CallSetProviderDefaultsForFields(obj interface{}, dp DataProvider) {
	forEachConfigField(obj, dp, func(c Config, cDp DataProvider) error {
		c.SetProviderDefaults(cDp)
		return nil
	})
}

// CallSetForFields finds all initialized (non-nil) fields of the passed object
// that implement Config interface and calls Set() method for each of them.
func CallSetForFields(obj interface{}, dp DataProvider) error {
	return forEachConfigField(obj, dp, func(c Config, cDp DataProvider) error {
		return c.Set(cDp)
	})
}

// forEachConfigField walks exported fields of obj and invokes fn for each one
// implementing Config. The data provider is narrowed by the field's key prefix
// when the field implements KeyPrefixProvider.
func forEachConfigField(obj interface{}, dp DataProvider, fn func(c Config, cDp DataProvider) error) error {
	el := reflect.ValueOf(obj).Elem()
	for i := 0; i < el.NumField(); i++ {
		if !el.Type().Field(i).IsExported() {
			continue
		}
		v := el.Field(i).Interface()
		if reflect.ValueOf(v).Kind() == reflect.Ptr && reflect.ValueOf(v).IsNil() {
			continue
		}
		c, ok := v.(Config)
		if !ok {
			continue
		}
		cDp := dp
		if kpDp, ok := v.(KeyPrefixProvider); ok && kpDp.KeyPrefix() != "" {
			cDp = NewKeyPrefixedDataProvider(dp, kpDp.KeyPrefix())
		}
		if err := fn(c, cDp); err != nil {
			return err
		}
	}
	return nil
}
