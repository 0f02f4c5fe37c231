/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package event

import (
	"github.com/spf13/cast"
)

// Event is an opaque log/event record: a mapping of field names to arbitrary values.
// The processing core never interprets its content except for the configurable
// fields used as throttling keys and deduplication signatures.
type Event map[string]interface{}

// Field returns a raw field value by name.
func (e Event) Field(name string) (interface{}, bool) {
	v, ok := e[name]
	return v, ok
}

// StringField returns a field value coerced to a string.
// It returns false if the field is absent or its value cannot be represented as a string.
func (e Event) StringField(name string) (string, bool) {
	v, ok := e[name]
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Clone returns a shallow copy of the event.
// Processors that modify field values must work on a copy,
// since producers may retain a reference to the submitted event.
func (e Event) Clone() Event {
	if e == nil {
		return nil
	}
	c := make(Event, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}
