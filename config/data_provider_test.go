/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeyErrIfNeeded(t *testing.T) {
	t.Run("wrap nil", func(t *testing.T) {
		assert.Nil(t, WrapKeyErrIfNeeded("log.output", nil), "nil should not be wrapped")
	})

	t.Run("wrap error", func(t *testing.T) {
		const key = "log.output"
		errInvalidOutput := errors.New("invalid output")
		gotErr := WrapKeyErrIfNeeded(key, errInvalidOutput)
		wantErrMsg := fmt.Sprintf("%s: %v", key, errInvalidOutput)
		assert.EqualError(t, gotErr, wantErrMsg, "texts of errors should be equal")
		assert.Equal(t, errInvalidOutput, errors.Unwrap(gotErr), "original error should be wrapped")
	})
}

type staticUpdater struct {
	key string
	val string
}

func (u staticUpdater) UpdateProviderValues(dp DataProvider) {
	dp.Set(u.key, u.val)
}

func TestUpdateDataProvider(t *testing.T) {
	dp := NewViperAdapter()
	UpdateDataProvider(dp,
		staticUpdater{"sink.kind", "file"},
		staticUpdater{"sink.path", "/var/log/events.ndjson"},
	)

	kind, err := dp.GetString("sink.kind")
	assert.NoError(t, err)
	assert.Equal(t, "file", kind)

	sinkPath, err := dp.GetString("sink.path")
	assert.NoError(t, err)
	assert.Equal(t, "/var/log/events.ndjson", sinkPath)
}
