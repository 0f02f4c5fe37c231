/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLibVersion(t *testing.T) {
	const moduleName = "github.com/acronis/go-eventkit"

	tests := []struct {
		name        string
		buildInfo   *buildinfo.BuildInfo
		expectedVer string
	}{
		{
			name: "module found",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{
					{Path: "github.com/prometheus/client_golang", Version: "v1.19.1"},
					{Path: moduleName, Version: "v1.4.2"},
				},
			},
			expectedVer: "v1.4.2",
		},
		{
			name: "module found, v2",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{
					{Path: moduleName + "/v2", Version: "v2.0.0"},
				},
			},
			expectedVer: "v2.0.0",
		},
		{
			name: "module found, multi-digit major version",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{
					{Path: moduleName + "/v12", Version: "v12.0.1"},
				},
			},
			expectedVer: "v12.0.1",
		},
		{
			name: "module not found",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{
					{Path: "github.com/other/module", Version: "v1.0.0"},
				},
			},
			expectedVer: "",
		},
		{
			name: "similar path is not matched",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{
					{Path: moduleName + "-extras", Version: "v1.0.0"},
					{Path: moduleName + "/vnext", Version: "v1.0.0"},
				},
			},
			expectedVer: "",
		},
		{
			name: "empty deps",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{},
			},
			expectedVer: "",
		},
		{
			name:        "nil build info",
			buildInfo:   nil,
			expectedVer: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedVer, extractLibVersion(tt.buildInfo, moduleName))
		})
	}
}

func TestAddPrometheusLibVersionLabel(t *testing.T) {
	labels := AddPrometheusLibVersionLabel(map[string]string{"stage": "dedup"})
	require.Equal(t, "dedup", labels["stage"])
	require.NotEmpty(t, labels[PrometheusLibVersionLabel])

	// Nil labels are accepted, the result carries only the version label.
	labels = AddPrometheusLibVersionLabel(nil)
	require.Len(t, labels, 1)
	require.Equal(t, GetLibVersion(), labels[PrometheusLibVersionLabel])
}
