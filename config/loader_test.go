/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testAppConfig struct {
	Queue struct {
		Capacity int
	}
}

func (c *testAppConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("queue.capacity", 10000)
}

func (c *testAppConfig) Set(dp DataProvider) error {
	var err error
	c.Queue.Capacity, err = dp.GetInt("queue.capacity")
	return err
}

type testSourceConfig struct {
	Name string
}

func (c *testSourceConfig) KeyPrefix() string {
	return "source"
}

func (c *testSourceConfig) SetProviderDefaults(_ DataProvider) {}

func (c *testSourceConfig) Set(dp DataProvider) error {
	var err error
	c.Name, err = dp.GetString("name")
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	cfgLoader := NewLoader(NewViperAdapter())

	t.Run("load config, use defaults", func(t *testing.T) {
		appCfg := &testAppConfig{}
		err := cfgLoader.LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, appCfg)
		require.NoError(t, err)
		require.Equal(t, 10000, appCfg.Queue.Capacity)
	})

	t.Run("load config", func(t *testing.T) {
		appCfg := &testAppConfig{}
		err := cfgLoader.LoadFromReader(bytes.NewBufferString(`{"queue":{"capacity":777}}`), DataTypeJSON, appCfg)
		require.NoError(t, err)
		require.Equal(t, 777, appCfg.Queue.Capacity)
	})

	t.Run("load config, use key prefix", func(t *testing.T) {
		sourceCfg := &testSourceConfig{}
		err := cfgLoader.LoadFromReader(bytes.NewBufferString(testSourceConfigJSON), DataTypeJSON, sourceCfg)
		require.NoError(t, err)
		require.Equal(t, "antivirus", sourceCfg.Name)
	})

	t.Run("load multiple configs in one call", func(t *testing.T) {
		appCfg := &testAppConfig{}
		sourceCfg := &testSourceConfig{}
		cfgData := `{"queue":{"capacity":777},"source":{"name":"antivirus"}}`
		err := cfgLoader.LoadFromReader(bytes.NewBufferString(cfgData), DataTypeJSON, appCfg, sourceCfg)
		require.NoError(t, err)
		require.Equal(t, 777, appCfg.Queue.Capacity)
		require.Equal(t, "antivirus", sourceCfg.Name)
	})

	t.Run("set error is propagated", func(t *testing.T) {
		appCfg := &testAppConfig{}
		err := cfgLoader.LoadFromReader(bytes.NewBufferString(`{"queue":{"capacity":"a lot"}}`), DataTypeJSON, appCfg)
		require.ErrorContains(t, err, "queue.capacity")
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "pipeline.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("queue:\n  capacity: 50000\n"), 0o600))

	appCfg := &testAppConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(cfgPath, DataTypeYAML, appCfg))
	require.Equal(t, 50000, appCfg.Queue.Capacity)
}
