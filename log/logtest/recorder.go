/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-eventkit/log"
)

// RecordedEntry is a single logged entry kept by the Recorder.
type RecordedEntry struct {
	LoggerName string
	Fields     []log.Field
	Level      log.Level
	Time       time.Time
	Text       string
}

// FindField looks up a field of the entry by key.
func (re *RecordedEntry) FindField(key string) (*log.Field, bool) {
	for i := range re.Fields {
		if re.Fields[i].Key == key {
			field := re.Fields[i]
			return &field, true
		}
	}
	return nil, false
}

type recordingEntryWriter struct {
	mu      sync.RWMutex
	entries []RecordedEntry
}

//nolint:gocritic
func (ew *recordingEntryWriter) WriteEntry(e logf.Entry) {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	fields := make([]log.Field, 0, len(e.Fields)+len(e.DerivedFields))
	fields = append(fields, e.Fields...)
	fields = append(fields, e.DerivedFields...)
	ew.entries = append(ew.entries, RecordedEntry{
		LoggerName: e.LoggerName,
		Fields:     fields,
		Level:      convertLogfLevelToLevel(e.Level),
		Time:       e.Time,
		Text:       e.Text,
	})
}

// Recorder is an implementation of log.FieldLogger that records all logged
// entries for later inspection in tests. Tests typically pass it as the logger
// of the component under test and then assert the recorded messages and fields.
// All levels are recorded, including "debug".
type Recorder struct {
	*log.LogfAdapter
	entryWriter *recordingEntryWriter
}

// NewRecorder returns an initialized Recorder.
func NewRecorder() *Recorder {
	writer := &recordingEntryWriter{}
	return &Recorder{&log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, writer)}, writer}
}

// With returns a new Recorder with the given additional fields.
// Both recorders share the recorded entries.
func (r *Recorder) With(fields ...log.Field) log.FieldLogger {
	return &Recorder{r.LogfAdapter.With(fields...).(*log.LogfAdapter), r.entryWriter}
}

// WithLevel returns a new Recorder that additionally filters by level.
// The effective level only ever tightens: messages below either the given
// or the previously set level are dropped. Both recorders share the
// recorded entries.
func (r *Recorder) WithLevel(level log.Level) log.FieldLogger {
	return &Recorder{r.LogfAdapter.WithLevel(level).(*log.LogfAdapter), r.entryWriter}
}

// Entries returns a copy of all recorded logging entries.
func (r *Recorder) Entries() []RecordedEntry {
	r.entryWriter.mu.RLock()
	defer r.entryWriter.mu.RUnlock()
	return append([]RecordedEntry{}, r.entryWriter.entries...)
}

// FindEntry looks up a recorded entry by its message.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	return r.FindEntryByFilter(func(entry RecordedEntry) bool {
		return entry.Text == msg
	})
}

// FindEntryByFilter returns the first recorded entry the filter accepts.
func (r *Recorder) FindEntryByFilter(filter func(entry RecordedEntry) bool) (RecordedEntry, bool) {
	r.entryWriter.mu.RLock()
	defer r.entryWriter.mu.RUnlock()
	for _, entry := range r.entryWriter.entries {
		if filter(entry) {
			return entry, true
		}
	}
	return RecordedEntry{}, false
}

// FindAllEntriesByFilter returns all recorded entries the filter accepts.
func (r *Recorder) FindAllEntriesByFilter(filter func(entry RecordedEntry) bool) []RecordedEntry {
	r.entryWriter.mu.RLock()
	defer r.entryWriter.mu.RUnlock()
	var found []RecordedEntry
	for _, entry := range r.entryWriter.entries {
		if filter(entry) {
			found = append(found, entry)
		}
	}
	return found
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.entryWriter.mu.Lock()
	r.entryWriter.entries = nil
	r.entryWriter.mu.Unlock()
}

func convertLogfLevelToLevel(lvl logf.Level) log.Level {
	switch lvl {
	case logf.LevelDebug:
		return log.LevelDebug
	case logf.LevelInfo:
		return log.LevelInfo
	case logf.LevelWarn:
		return log.LevelWarn
	case logf.LevelError:
		return log.LevelError
	}
	return log.LevelInfo
}
