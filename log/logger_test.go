/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ssgreg/logf"
	"github.com/stretchr/testify/require"
)

func TestLoggerToStd(t *testing.T) {
	oldStdOut := os.Stdout
	oldStdErr := os.Stderr
	defer func() {
		os.Stdout = oldStdOut
		os.Stderr = oldStdErr
	}()

	tests := []struct {
		Output Output
		Level  Level
		Msg    string
		Error  error
	}{
		{
			Output: OutputStdout,
			Level:  LevelInfo,
			Msg:    "pipeline started",
		},
		{
			Output: OutputStdout,
			Level:  LevelWarn,
			Msg:    "event dropped",
		},
		{
			Output: OutputStdout,
			Level:  LevelError,
			Msg:    "batch delivery failed",
			Error:  errors.New("sink unavailable"),
		},
		{
			Output: OutputStderr,
			Level:  LevelInfo,
			Msg:    "pipeline started",
		},
	}

	for i := range tests {
		test := tests[i]

		r, w, _ := os.Pipe()

		if test.Output == OutputStderr {
			os.Stderr = w
		} else {
			os.Stdout = w
		}

		go func() {
			logger, closer := NewLogger(&Config{
				Output:  test.Output,
				NoColor: true,
				Format:  FormatJSON,
				Level:   LevelInfo,
				Error:   ErrorConfig{VerboseSuffix: "err"},
			})
			switch test.Level {
			case LevelInfo:
				logger.Info(test.Msg)
			case LevelWarn:
				logger.Warn(test.Msg)
			case LevelError:
				logger.Error(test.Msg, logf.Error(test.Error))
			}
			closer()
			_ = w.Close()
		}()

		var buf bytes.Buffer
		_, err := io.Copy(&buf, r)
		require.NoError(t, err, "io.Copy")

		var j map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &j))

		require.Equal(t, string(test.Level), j["level"])
		require.Equal(t, test.Msg, j["msg"])
		if test.Error != nil {
			require.Equal(t, test.Error.Error(), j["error"])
		}
		require.Equal(t, os.Getpid(), int(j["pid"].(float64)))
	}
}

func TestTextFormat(t *testing.T) {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = old // restoring the real stderr
	}()

	go func() {
		logger, closer := NewLogger(&Config{
			Output:  OutputStderr,
			NoColor: true,
			Format:  FormatText,
			Level:   LevelInfo,
			Error:   ErrorConfig{VerboseSuffix: "err"},
		})
		logger.AtLevel(LevelError, func(logFunc LogFunc) {
			logFunc("batch delivery failed", logf.Error(errors.New("sink unavailable")))
		})
		closer()
		_ = w.Close()
	}()

	var buf bytes.Buffer
	_, err := io.Copy(&buf, r)
	require.NoError(t, err, "io.Copy")

	require.Contains(t, buf.String(), `|ERRO|`)
	require.Contains(t, buf.String(), ` batch delivery failed `)
	require.Contains(t, buf.String(), `error="sink unavailable"`)
	require.Contains(t, buf.String(), fmt.Sprintf(`pid=%d`, os.Getpid()))
}

func TestLoggerFileOutput(t *testing.T) {
	logFilePath := filepath.Join(t.TempDir(), "pipeline-{{pid}}.log")

	logger, closer := NewLogger(&Config{
		Output: OutputFile,
		Format: FormatJSON,
		Level:  LevelInfo,
		File: FileOutputConfig{
			Path: logFilePath,
			Rotation: FileRotationConfig{
				MaxSize:    DefaultFileRotationMaxSizeBytes,
				MaxBackups: 1,
			},
		},
	})
	logger.Info("event accepted", String("source", "antivirus"))
	closer()

	resolvedPath := strings.ReplaceAll(logFilePath, "{{pid}}", strconv.Itoa(os.Getpid()))
	data, err := os.ReadFile(resolvedPath)
	require.NoError(t, err)

	var j map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &j))
	require.Equal(t, "event accepted", j["msg"])
	require.Equal(t, "antivirus", j["source"])
}
