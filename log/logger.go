/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is a typed key-value pair attached to a log entry.
type Field = logf.Field

// CloseFunc flushes the buffered log entries and releases the writer.
// It must be called before the process exits, otherwise the tail of the log may be lost.
type CloseFunc logf.ChannelWriterCloseFunc

// LogFunc allows logging a message with a bound level.
// nolint: revive
type LogFunc = logf.LogFunc

// Error constructs a Field holding an error under the "error" key.
var Error = logf.Error

// NamedError constructs a Field holding an error under the given key.
var NamedError = logf.NamedError

// String constructs a Field holding a string.
var String = logf.String

// Strings constructs a Field holding a slice of strings.
var Strings = logf.Strings

// Bytes constructs a Field holding a slice of bytes.
var Bytes = logf.Bytes

// Bool constructs a Field holding a bool.
var Bool = logf.Bool

// Int constructs a Field holding an int.
var Int = logf.Int

// Int8 constructs a Field holding an int8.
var Int8 = logf.Int8

// Int16 constructs a Field holding an int16.
var Int16 = logf.Int16

// Int32 constructs a Field holding an int32.
var Int32 = logf.Int32

// Int64 constructs a Field holding an int64.
var Int64 = logf.Int64

// Uint8 constructs a Field holding a uint8.
var Uint8 = logf.Uint8

// Uint16 constructs a Field holding a uint16.
var Uint16 = logf.Uint16

// Uint32 constructs a Field holding a uint32.
var Uint32 = logf.Uint32

// Uint64 constructs a Field holding a uint64.
var Uint64 = logf.Uint64

// Float32 constructs a Field holding a float32.
var Float32 = logf.Float32

// Float64 constructs a Field holding a float64.
var Float64 = logf.Float64

// Duration constructs a Field holding a time.Duration.
var Duration = logf.Duration

// Time constructs a Field holding a time.Time.
var Time = logf.Time

// Any constructs a Field from a value of any type. It tries
// to choose the best way to represent the key-value pair as a Field.
var Any = logf.Any

// DurationIn constructs a Field under the "duration" key holding
// the value converted to the given unit as an int64.
func DurationIn(val, unit time.Duration) Field {
	return Int64("duration", val.Nanoseconds()/unit.Nanoseconds())
}

// FieldLogger is the structured logging interface used throughout the library.
// Pipeline stages, workers and cleanup managers all log through it.
type FieldLogger interface {
	With(...Field) FieldLogger

	Debug(string, ...Field)
	Info(string, ...Field)
	Warn(string, ...Field)
	Error(string, ...Field)

	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})

	AtLevel(Level, func(LogFunc))
	WithLevel(level Level) FieldLogger
}

// LogfAdapter adapts logf.Logger to the FieldLogger interface.
type LogfAdapter struct {
	Logger *logf.Logger
}

// NewLogger returns a new logger built from the configuration.
// Entries are written asynchronously through a channel writer,
// the returned CloseFunc flushes them and must be called on shutdown.
func NewLogger(cfg *Config) (FieldLogger, CloseFunc) {
	channelWriter, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          makeLogfAppender(cfg),
		EnableSyncOnError: true,
	})
	logfLogger := logf.NewLogger(convertLevelToLogfLevel(cfg.Level), channelWriter)
	logfLogger = logfLogger.With(logf.Int("pid", os.Getpid()))
	if cfg.AddCaller {
		// Skip one frame, the reported caller should be the call site, not this adapter.
		logfLogger = logfLogger.WithCaller().WithCallerSkip(1)
	}
	return &LogfAdapter{logfLogger}, CloseFunc(closeFunc)
}

// NewDisabledLogger returns a new logger that logs nothing.
func NewDisabledLogger() FieldLogger {
	return &LogfAdapter{logf.NewDisabledLogger()}
}

// With returns a new logger with the given additional fields.
func (l *LogfAdapter) With(fields ...Field) FieldLogger {
	return &LogfAdapter{l.Logger.With(fields...)}
}

// Debug logs message at "debug" level.
func (l *LogfAdapter) Debug(msg string, fields ...Field) {
	l.Logger.Debug(msg, fields...)
}

// Info logs message at "info" level.
func (l *LogfAdapter) Info(msg string, fields ...Field) {
	l.Logger.Info(msg, fields...)
}

// Warn logs message at "warn" level.
func (l *LogfAdapter) Warn(msg string, fields ...Field) {
	l.Logger.Warn(msg, fields...)
}

// Error logs message at "error" level.
func (l *LogfAdapter) Error(msg string, fields ...Field) {
	l.Logger.Error(msg, fields...)
}

// Debugf logs a formatted message at "debug" level.
func (l *LogfAdapter) Debugf(format string, args ...interface{}) {
	l.logStringAtLevel(LevelDebug, format, args...)
}

// Infof logs a formatted message at "info" level.
func (l *LogfAdapter) Infof(format string, args ...interface{}) {
	l.logStringAtLevel(LevelInfo, format, args...)
}

// Warnf logs a formatted message at "warn" level.
func (l *LogfAdapter) Warnf(format string, args ...interface{}) {
	l.logStringAtLevel(LevelWarn, format, args...)
}

// Errorf logs a formatted message at "error" level.
func (l *LogfAdapter) Errorf(format string, args ...interface{}) {
	l.logStringAtLevel(LevelError, format, args...)
}

func (l *LogfAdapter) logStringAtLevel(level Level, format string, args ...interface{}) {
	l.AtLevel(level, func(writer LogFunc) {
		writer(fmt.Sprintf(format, args...))
	})
}

// AtLevel calls the given fn if logging a message at the specified level
// is enabled, passing a LogFunc with the bound level.
func (l *LogfAdapter) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.Logger.AtLevel(convertLevelToLogfLevel(level), fn)
}

// WithLevel returns a logger that additionally filters by level.
// The effective level only ever tightens: messages below either the given
// or the previously set level are dropped.
func (l *LogfAdapter) WithLevel(level Level) FieldLogger {
	return &LogfAdapter{Logger: l.Logger.WithLevel(convertLevelToLogfLevel(level))}
}

func convertLevelToLogfLevel(lvl Level) logf.Level {
	switch lvl {
	case LevelDebug:
		return logf.LevelDebug
	case LevelInfo:
		return logf.LevelInfo
	case LevelWarn:
		return logf.LevelWarn
	case LevelError:
		return logf.LevelError
	}
	return logf.LevelInfo
}

func makeLogfAppender(cfg *Config) logf.Appender {
	switch cfg.Output {
	case OutputFile:
		fileWriter := &lumberjack.Logger{
			Filename:   resolvePlaceholders(cfg.File.Path),
			MaxSize:    int(cfg.File.Rotation.MaxSize / 1024 / 1024),
			MaxBackups: cfg.File.Rotation.MaxBackups,
			MaxAge:     cfg.File.Rotation.MaxAgeDays,
			Compress:   cfg.File.Rotation.Compress,
			LocalTime:  cfg.File.Rotation.LocalTimeInNames,
		}
		return makeLogfAppenderWithWriter(cfg, fileWriter)
	case OutputStderr:
		return makeLogfAppenderWithWriter(cfg, os.Stderr)
	default:
		return makeLogfAppenderWithWriter(cfg, os.Stdout)
	}
}

func makeLogfAppenderWithWriter(cfg *Config, w io.Writer) logf.Appender {
	var errorEncoder logf.ErrorEncoder
	if cfg.Error.VerboseSuffix != "" || cfg.Error.NoVerbose {
		errorEncoder = logf.NewErrorEncoder(logf.ErrorEncoderConfig{
			NoVerboseField:     cfg.Error.NoVerbose,
			VerboseFieldSuffix: cfg.Error.VerboseSuffix,
		})
	}

	switch cfg.Format {
	case FormatText:
		noColor := cfg.NoColor
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:     &noColor,
			EncodeTime:  logf.RFC3339NanoTimeEncoder,
			EncodeError: errorEncoder,
		})
	default:
		return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
			EncodeTime:   logf.RFC3339NanoTimeEncoder,
			EncodeError:  errorEncoder,
			FieldKeyTime: "time",
		}))
	}
}

// resolvePlaceholders expands the {{pid}} and {{starttime}} placeholders in the log file path.
func resolvePlaceholders(filePath string) string {
	return strings.NewReplacer(
		"{{pid}}", strconv.Itoa(os.Getpid()),
		"{{starttime}}", time.Now().Format("200601021504"),
	).Replace(filePath)
}
