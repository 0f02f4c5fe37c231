/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo knows the library's own module version and exposes it
// as a constant label on the Prometheus metrics the library emits.
package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const libShortName = "go-eventkit"

const moduleName = "github.com/acronis/" + libShortName

// PrometheusLibVersionLabel is the name of the constant label carrying the library version.
const PrometheusLibVersionLabel = "go_eventkit_version"

// AddPrometheusLibVersionLabel returns a copy of labels with the library version label added.
// The passed labels are not modified.
func AddPrometheusLibVersionLabel(labels prometheus.Labels) prometheus.Labels {
	labelsCopy := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		labelsCopy[k] = v
	}
	labelsCopy[PrometheusLibVersionLabel] = GetLibVersion()
	return labelsCopy
}

var (
	libVersion     string
	libVersionOnce sync.Once
)

// GetLibVersion returns the library version from the binary's build info,
// "v0.0.0" when the library is not listed there (tests, replace directives).
func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}

func initLibVersion() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		libVersion = extractLibVersion(buildInfo, moduleName)
	}
	if libVersion == "" {
		libVersion = "v0.0.0"
	}
}

func extractLibVersion(buildInfo *buildinfo.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	for _, dep := range buildInfo.Deps {
		if isModulePath(dep.Path, modName) {
			return dep.Version
		}
	}
	return ""
}

// isModulePath reports whether path is modName itself or modName with a major
// version suffix ("/v2", "/v3", ...), the way Go modules encode major bumps.
func isModulePath(path, modName string) bool {
	if path == modName {
		return true
	}
	rest, found := strings.CutPrefix(path, modName+"/v")
	if !found || rest == "" {
		return false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
