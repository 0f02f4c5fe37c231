/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertSamplesCountInHistogram asserts that passed prometheus.Histogram contains the specified number of samples.
func AssertSamplesCountInHistogram(t assert.TestingT, hist prometheus.Histogram, wantSamplesCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	mf, ok := gatherSingleMetricFamily(t, hist)
	if !ok {
		return false
	}
	return assert.Equal(t, wantSamplesCount, int(mf.GetMetric()[0].GetHistogram().GetSampleCount()))
}

// RequireSamplesCountInHistogram calls AssertSamplesCountInHistogram and fails the test immediately in case of error.
func RequireSamplesCountInHistogram(t require.TestingT, hist prometheus.Histogram, wantSamplesCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertSamplesCountInHistogram(t, hist, wantSamplesCount) {
		return
	}
	t.FailNow()
}

// AssertSamplesCountInCounter asserts that passed prometheus.Counter has proper value.
func AssertSamplesCountInCounter(t assert.TestingT, counter prometheus.Counter, wantCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	mf, ok := gatherSingleMetricFamily(t, counter)
	if !ok {
		return false
	}
	return assert.Equal(t, wantCount, int(mf.GetMetric()[0].GetCounter().GetValue()))
}

// RequireSamplesCountInCounter calls AssertSamplesCountInCounter and fails the test immediately in case of error.
func RequireSamplesCountInCounter(t require.TestingT, counter prometheus.Counter, wantCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertSamplesCountInCounter(t, counter, wantCount) {
		return
	}
	t.FailNow()
}

// gatherSingleMetricFamily registers the collector in a fresh pedantic registry
// and gathers it, expecting exactly one metric family.
func gatherSingleMetricFamily(t assert.TestingT, c prometheus.Collector) (*dto.MetricFamily, bool) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(c)) {
		return nil, false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) {
		return nil, false
	}
	if !assert.Equal(t, 1, len(gotMetrics)) {
		return nil, false
	}
	return gotMetrics[0], true
}
