/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBytesCount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BytesCount
		wantErr bool
	}{
		{"integer is taken as bytes", `512`, BytesCount(512), false},
		{"human-readable", `"64MB"`, BytesCount(64 * 1024 * 1024), false},
		{"fractional", `"1.5K"`, BytesCount(1536), false},
		{"k8s power-of-two suffix", `"128Ki"`, BytesCount(128 * 1024), false},
		{"invalid format", `"lots"`, 0, true},
		{"negative value", `"-512"`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var b BytesCount
			err := json.Unmarshal([]byte(tc.input), &b)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, b)
		})
	}
}

func TestBytesCount_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BytesCount
		wantErr bool
	}{
		{"integer is taken as bytes", "maxSize: 65536", BytesCount(65536), false},
		{"human-readable", "maxSize: 16K", BytesCount(16 * 1024), false},
		{"k8s power-of-two suffix", "maxSize: 2Gi", BytesCount(2 * 1024 * 1024 * 1024), false},
		{"invalid format", "maxSize: huge", 0, true},
		{"negative value", "maxSize: -65536", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg struct {
				MaxSize BytesCount `yaml:"maxSize"`
			}
			err := yaml.Unmarshal([]byte(tc.input), &cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, cfg.MaxSize)
		})
	}
}

// UnmarshalText is what mapstructure's TextUnmarshallerHookFunc calls
// when the config is loaded through Viper.
func TestBytesCount_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BytesCount
		wantErr bool
	}{
		{"integer is taken as bytes", "4096", BytesCount(4096), false},
		{"human-readable", "100MB", BytesCount(100 * 1024 * 1024), false},
		{"invalid format", "many", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var b BytesCount
			err := b.UnmarshalText([]byte(tc.input))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, b)
		})
	}
}

func TestBytesCount_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		val      BytesCount
		wantJSON string
		wantYAML string
		wantText string
	}{
		{"bytes", BytesCount(512), `"512B"`, "512B\n", "512B"},
		{"fractional kilobytes", BytesCount(1536), `"1.5K"`, "1.5K\n", "1.5K"},
		{"megabytes", BytesCount(64 * 1024 * 1024), `"64M"`, "64M\n", "64M"},
		{"gigabytes", BytesCount(2 * 1024 * 1024 * 1024), `"2G"`, "2G\n", "2G"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jsonData, err := json.Marshal(tc.val)
			require.NoError(t, err)
			require.Equal(t, tc.wantJSON, string(jsonData))

			yamlData, err := yaml.Marshal(tc.val)
			require.NoError(t, err)
			require.Equal(t, tc.wantYAML, string(yamlData))

			textData, err := tc.val.MarshalText()
			require.NoError(t, err)
			require.Equal(t, tc.wantText, string(textData))
		})
	}
}

func TestBytesCount_String(t *testing.T) {
	require.Equal(t, "256B", BytesCount(256).String())
	require.Equal(t, "1K", BytesCount(1024).String())
	require.Equal(t, "16M", BytesCount(16*1024*1024).String())
	require.Equal(t, "3G", BytesCount(3*1024*1024*1024).String())
}

func TestTimeDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TimeDuration
		wantErr bool
	}{
		{"integer is taken as nanoseconds", `5000000000`, TimeDuration(5 * time.Second), false},
		{"human-readable", `"30s"`, TimeDuration(30 * time.Second), false},
		{"compound", `"1h30m"`, TimeDuration(90 * time.Minute), false},
		{"sub-second", `"500ms"`, TimeDuration(500 * time.Millisecond), false},
		{"invalid format", `"soon"`, 0, true},
		{"negative value", `"-5000"`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d TimeDuration
			err := json.Unmarshal([]byte(tc.input), &d)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, d)
		})
	}
}

func TestTimeDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TimeDuration
		wantErr bool
	}{
		{"integer is taken as nanoseconds", "flushInterval: 250000000", TimeDuration(250 * time.Millisecond), false},
		{"human-readable", "flushInterval: 15s", TimeDuration(15 * time.Second), false},
		{"compound", "flushInterval: 2h45m", TimeDuration(2*time.Hour + 45*time.Minute), false},
		{"invalid format", "flushInterval: never", 0, true},
		{"negative value", "flushInterval: -250", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg struct {
				FlushInterval TimeDuration `yaml:"flushInterval"`
			}
			err := yaml.Unmarshal([]byte(tc.input), &cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, cfg.FlushInterval)
		})
	}
}

func TestTimeDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TimeDuration
		wantErr bool
	}{
		{"integer is taken as nanoseconds", "750000000", TimeDuration(750 * time.Millisecond), false},
		{"human-readable", "45s", TimeDuration(45 * time.Second), false},
		{"invalid format", "forever", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d TimeDuration
			err := d.UnmarshalText([]byte(tc.input))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, d)
		})
	}
}

func TestTimeDuration_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		val      TimeDuration
		wantJSON string
		wantYAML string
		wantText string
	}{
		{"sub-second", TimeDuration(500 * time.Millisecond), `"500ms"`, "500ms\n", "500ms"},
		{"seconds", TimeDuration(30 * time.Second), `"30s"`, "30s\n", "30s"},
		{"compound", TimeDuration(90 * time.Second), `"1m30s"`, "1m30s\n", "1m30s"},
		{"hours", TimeDuration(2 * time.Hour), `"2h0m0s"`, "2h0m0s\n", "2h0m0s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jsonData, err := json.Marshal(tc.val)
			require.NoError(t, err)
			require.Equal(t, tc.wantJSON, string(jsonData))

			yamlData, err := yaml.Marshal(tc.val)
			require.NoError(t, err)
			require.Equal(t, tc.wantYAML, string(yamlData))

			textData, err := tc.val.MarshalText()
			require.NoError(t, err)
			require.Equal(t, tc.wantText, string(textData))
		})
	}
}

func TestTimeDuration_String(t *testing.T) {
	require.Equal(t, "250ms", TimeDuration(250*time.Millisecond).String())
	require.Equal(t, "1s", TimeDuration(time.Second).String())
	require.Equal(t, "1m0s", TimeDuration(time.Minute).String())
	require.Equal(t, "1h0m0s", TimeDuration(time.Hour).String())
}
