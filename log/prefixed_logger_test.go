/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-eventkit/log"
	"github.com/acronis/go-eventkit/log/logtest"
)

func TestPrefixedLogger(t *testing.T) {
	const prefix = "throttle: "
	recorder := logtest.NewRecorder()
	logger := log.NewPrefixedLogger(recorder, prefix)

	checkRecordedLogAndReset := func(wantText string, wantLevel log.Level, wantFields ...log.Field) {
		entries := recorder.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, wantText, entries[0].Text)
		require.Equal(t, wantLevel, entries[0].Level)
		if len(wantFields) != 0 && len(entries[0].Fields) != 0 {
			require.Equal(t, wantFields, entries[0].Fields)
		}
		recorder.Reset()
	}

	logger.Debug("rate limit check passed", log.Int("remaining", 42))
	checkRecordedLogAndReset(prefix+"rate limit check passed", log.LevelDebug, log.Int("remaining", 42))
	logger.Debugf("rate limit check passed for %s", "antivirus")
	checkRecordedLogAndReset(prefix+"rate limit check passed for antivirus", log.LevelDebug)

	logger.Info("event passed", log.Int("remaining", 42))
	checkRecordedLogAndReset(prefix+"event passed", log.LevelInfo, log.Int("remaining", 42))
	logger.Infof("event passed for %s", "antivirus")
	checkRecordedLogAndReset(prefix+"event passed for antivirus", log.LevelInfo)

	logger.Warn("event suppressed", log.Int("remaining", 42))
	checkRecordedLogAndReset(prefix+"event suppressed", log.LevelWarn, log.Int("remaining", 42))
	logger.Warnf("event suppressed for %s", "antivirus")
	checkRecordedLogAndReset(prefix+"event suppressed for antivirus", log.LevelWarn)

	logger.Error("rate limiter failed", log.Int("remaining", 42))
	checkRecordedLogAndReset(prefix+"rate limiter failed", log.LevelError, log.Int("remaining", 42))
	logger.Errorf("rate limiter failed for %s", "antivirus")
	checkRecordedLogAndReset(prefix+"rate limiter failed for antivirus", log.LevelError)

	loggerWithFields := logger.With(log.String("key", "tenant-42"))
	loggerWithFields.Info("window rotated")
	checkRecordedLogAndReset(prefix+"window rotated", log.LevelInfo, log.String("key", "tenant-42"))

	logger.AtLevel(log.LevelInfo, func(logFunc log.LogFunc) {
		logFunc("window rotated", log.String("key", "tenant-42"))
	})
	checkRecordedLogAndReset(prefix+"window rotated", log.LevelInfo, log.String("key", "tenant-42"))
}
