/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dedup

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-eventkit/config"
	"github.com/acronis/go-eventkit/event"
)

const yamlTestConfig = `
fields: ["msg", "ctx.*"]
window: 30s
hashAlg: sha256
maxTrackedSignatures: 5000
`

const jsonTestConfig = `
{
  "fields": ["msg", "ctx.*"],
  "window": "30s",
  "hashAlg": "sha256",
  "maxTrackedSignatures": 5000
}
`

func requireTestConfig(t *testing.T, cfg *Config) {
	t.Helper()
	require.Equal(t, []string{"msg", "ctx.*"}, cfg.Fields)
	require.Equal(t, config.TimeDuration(30*time.Second), cfg.Window)
	require.Equal(t, event.HashAlgSHA256, cfg.HashAlg)
	require.Equal(t, 5000, cfg.MaxTrackedSignatures)
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
	}{
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData:     yamlTestConfig,
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     jsonTestConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg *Config

			// Load config using config.Loader.
			cfg = NewConfig()
			cfgLoader := config.NewLoader(config.NewViperAdapter())
			err := cfgLoader.LoadFromReader(bytes.NewBuffer([]byte(tt.cfgData)), tt.cfgDataType, cfg)
			require.NoError(t, err)
			requireTestConfig(t, cfg)

			// Load config using viper unmarshal.
			cfg = NewConfig()
			vpr := viper.New()
			vpr.SetConfigType(string(tt.cfgDataType))
			require.NoError(t, vpr.ReadConfig(bytes.NewBuffer([]byte(tt.cfgData))))
			require.NoError(t, vpr.Unmarshal(&cfg, func(decoderConfig *mapstructure.DecoderConfig) {
				decoderConfig.DecodeHook = MapstructureDecodeHook()
			}))
			requireTestConfig(t, cfg)

			// Load config using yaml/json unmarshal.
			cfg = NewConfig()
			switch tt.cfgDataType {
			case config.DataTypeYAML:
				require.NoError(t, yaml.Unmarshal([]byte(tt.cfgData), &cfg))
				requireTestConfig(t, cfg)
			case config.DataTypeJSON:
				require.NoError(t, json.Unmarshal([]byte(tt.cfgData), &cfg))
				requireTestConfig(t, cfg)
			default:
				t.Fatalf("unsupported config data type: %s", tt.cfgDataType)
			}
		})
	}
}

func TestConfig_Set_WithErrors(t *testing.T) {
	tests := []struct {
		Name       string
		CfgData    string
		WantErrStr string
	}{
		{
			Name:       "missing window",
			CfgData:    `fields: ["msg"]`,
			WantErrStr: `window should be positive, got 0s`,
		},
		{
			Name: "unknown hash algorithm",
			CfgData: `
window: 30s
hashAlg: crc32
`,
			WantErrStr: `unknown hash algorithm "crc32"`,
		},
		{
			Name: "negative max signatures",
			CfgData: `
window: 30s
maxTrackedSignatures: -1
`,
			WantErrStr: `maximum signatures should be >= 0, got -1`,
		},
	}
	configLoader := config.NewLoader(config.NewViperAdapter())
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			cfg := &Config{}
			err := configLoader.LoadFromReader(bytes.NewReader([]byte(tt.CfgData)), config.DataTypeYAML, cfg)
			require.EqualError(t, err, tt.WantErrStr)
		})
	}
}
