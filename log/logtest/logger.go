/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-eventkit/log"
)

// syncEntryWriter encodes entries and writes them out right away,
// without the channel-based buffering the production logger uses.
type syncEntryWriter struct {
	mu      sync.Mutex
	encoder logf.Encoder
	output  io.Writer
}

//nolint:gocritic
func (w *syncEntryWriter) WriteEntry(entry logf.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf logf.Buffer
	if err := w.encoder.Encode(&buf, entry); err != nil {
		_, _ = fmt.Fprint(w.output, err)
		return
	}
	_, _ = fmt.Fprint(w.output, string(buf.Data))
}

// NewLogger returns a logger for tests that writes JSON entries to stderr at "debug" level.
// Entries are written synchronously, which makes the logger too slow for production
// but convenient in tests that want to see messages as soon as they are logged.
func NewLogger() log.FieldLogger {
	return NewLoggerWithOpts(LoggerOpts{Output: os.Stderr})
}

// LoggerOpts allows to set custom options for test logger such as messages output target.
type LoggerOpts struct {
	Output io.Writer
}

// NewLoggerWithOpts is a version of NewLogger that allows customizing the logger.
// If opts.Output is nil, os.Stderr is used.
func NewLoggerWithOpts(opts LoggerOpts) log.FieldLogger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	writer := &syncEntryWriter{
		encoder: logf.NewJSONEncoder(logf.JSONEncoderConfig{
			EncodeTime:   logf.RFC3339NanoTimeEncoder,
			FieldKeyTime: "time",
		}),
		output: output,
	}
	return &log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, writer)}
}
