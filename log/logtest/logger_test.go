/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-eventkit/log"
)

func TestLogger(t *testing.T) {
	captureEntry := func(logFn func(logger log.FieldLogger)) map[string]interface{} {
		t.Helper()
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		logFn(NewLoggerWithOpts(LoggerOpts{Output: w}))
		require.NoError(t, w.Flush())
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		return entry
	}

	t.Run("formatted message", func(t *testing.T) {
		entry := captureEntry(func(logger log.FieldLogger) {
			logger.Errorf("sink write failed: %v", "connection reset")
		})
		require.Equal(t, "error", entry["level"])
		require.Equal(t, "sink write failed: connection reset", entry["msg"])
		require.NotEmpty(t, entry["time"])
	})

	t.Run("message with fields", func(t *testing.T) {
		entry := captureEntry(func(logger log.FieldLogger) {
			logger.Info("flushing batch", log.Int("batchSize", 100))
		})
		require.Equal(t, "info", entry["level"])
		require.Equal(t, "flushing batch", entry["msg"])
		require.Equal(t, float64(100), entry["batchSize"])
	})
}
