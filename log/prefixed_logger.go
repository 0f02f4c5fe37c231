/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import "fmt"

// PrefixedLogger is a FieldLogger that prepends a fixed text to every logged message.
// It is handy when several components share one logger and their messages
// need to identify the component, for example pipeline stages ("dedup: ", "throttle: ").
type PrefixedLogger struct {
	delegate FieldLogger
	prefix   string
}

var _ FieldLogger = (*PrefixedLogger)(nil)

// NewPrefixedLogger returns a new PrefixedLogger instance.
// The prefix is prepended as is, including any trailing separator.
func NewPrefixedLogger(delegate FieldLogger, prefix string) FieldLogger {
	return &PrefixedLogger{delegate, prefix}
}

// With returns a new logger with the given additional fields. The prefix is kept.
func (l *PrefixedLogger) With(fields ...Field) FieldLogger {
	return &PrefixedLogger{l.delegate.With(fields...), l.prefix}
}

// WithLevel returns a new logger that additionally filters by level. The prefix is kept.
// The effective level only ever tightens: messages below either the given
// or the previously set level are dropped.
func (l *PrefixedLogger) WithLevel(level Level) FieldLogger {
	return &PrefixedLogger{l.delegate.WithLevel(level), l.prefix}
}

// Debug logs a prefixed message at "debug" level.
func (l *PrefixedLogger) Debug(msg string, fields ...Field) {
	l.delegate.Debug(l.prefix+msg, fields...)
}

// Info logs a prefixed message at "info" level.
func (l *PrefixedLogger) Info(msg string, fields ...Field) {
	l.delegate.Info(l.prefix+msg, fields...)
}

// Warn logs a prefixed message at "warn" level.
func (l *PrefixedLogger) Warn(msg string, fields ...Field) {
	l.delegate.Warn(l.prefix+msg, fields...)
}

// Error logs a prefixed message at "error" level.
func (l *PrefixedLogger) Error(msg string, fields ...Field) {
	l.delegate.Error(l.prefix+msg, fields...)
}

// Debugf logs a prefixed formatted message at "debug" level.
func (l *PrefixedLogger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Infof logs a prefixed formatted message at "info" level.
func (l *PrefixedLogger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a prefixed formatted message at "warn" level.
func (l *PrefixedLogger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a prefixed formatted message at "error" level.
func (l *PrefixedLogger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// AtLevel calls the given fn if logging a message at the specified level
// is enabled, passing a LogFunc with the bound level.
// The prefix is applied to messages logged through the passed LogFunc as well.
func (l *PrefixedLogger) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.delegate.AtLevel(level, func(logFunc LogFunc) {
		fn(func(msg string, fields ...Field) {
			logFunc(l.prefix+msg, fields...)
		})
	})
}
