/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// BytesCount is a size in bytes for configuration structures: rotation sizes,
// queue and batch limits. It parses from bare integers (bytes) as well as
// human-readable strings ("64MB", "128Mi") and marshals back to the
// human-readable form.
type BytesCount uint64

// UnmarshalJSON decodes from a JSON number or a human-readable string.
// Implements json.Unmarshaler interface.
func (b *BytesCount) UnmarshalJSON(data []byte) error {
	return b.parse(strings.Trim(string(data), `"`))
}

// UnmarshalYAML decodes from a YAML integer or a human-readable string.
// Implements yaml.Unmarshaler interface.
func (b *BytesCount) UnmarshalYAML(node *yaml.Node) error {
	var num uint64
	if err := node.Decode(&num); err == nil {
		*b = BytesCount(num)
		return nil
	}
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, parseErr := parseBytesCountFromString(s)
		if parseErr != nil {
			return parseErr
		}
		*b = parsed
		return nil
	}
	return fmt.Errorf("invalid byte size format: %v", node)
}

// UnmarshalText decodes from text.
// Implements encoding.TextUnmarshaler interface, which is used by mapstructure.TextUnmarshallerHookFunc.
func (b *BytesCount) UnmarshalText(text []byte) error {
	return b.parse(string(text))
}

func (b *BytesCount) parse(s string) error {
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return fmt.Errorf("negative value is not allowed: %d", num)
		}
		*b = BytesCount(num)
		return nil
	}
	parsed, err := parseBytesCountFromString(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// String returns the human-readable representation, e.g. "64M".
// Implements fmt.Stringer interface.
func (b BytesCount) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// MarshalJSON encodes as a human-readable JSON string.
// Implements json.Marshaler interface.
func (b BytesCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// MarshalYAML encodes as a human-readable YAML string.
// Implements yaml.Marshaler interface.
func (b BytesCount) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// MarshalText encodes as human-readable text.
// Implements encoding.TextMarshaler interface.
func (b BytesCount) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func parseBytesCountFromString(s string) (BytesCount, error) {
	num, err := bytefmt.ToBytes(stripK8sByteSuffix(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("invalid byte size format (%s): %w", s, err)
	}
	return BytesCount(num), nil
}

// stripK8sByteSuffix converts k8s power-of-two notation ("128Mi")
// into the form bytefmt understands ("128M").
func stripK8sByteSuffix(s string) string {
	for _, suffix := range [...]string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei"} {
		if strings.HasSuffix(s, suffix) {
			return s[:len(s)-1]
		}
	}
	return s
}

// TimeDuration is a time duration for configuration structures: flush
// intervals, retry delays, retention periods. It parses from bare integers
// (nanoseconds) as well as human-readable strings ("1h30m") and marshals
// back to the human-readable form.
type TimeDuration time.Duration

// UnmarshalJSON decodes from a JSON number (nanoseconds) or a human-readable string.
// Implements json.Unmarshaler interface.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	return d.parse(strings.Trim(string(data), `"`))
}

// UnmarshalYAML decodes from a YAML integer (nanoseconds) or a human-readable string.
// Implements yaml.Unmarshaler interface.
func (d *TimeDuration) UnmarshalYAML(node *yaml.Node) error {
	var num int64
	if err := node.Decode(&num); err == nil {
		if num < 0 {
			return fmt.Errorf("negative value is not allowed: %d", num)
		}
		*d = TimeDuration(num)
		return nil
	}
	var s string
	if err := node.Decode(&s); err == nil {
		dur, parseErr := time.ParseDuration(s)
		if parseErr != nil {
			return fmt.Errorf("invalid time duration format (%s): %w", s, parseErr)
		}
		*d = TimeDuration(dur)
		return nil
	}
	return fmt.Errorf("invalid time duration format: %v", node)
}

// UnmarshalText decodes from text.
// Implements encoding.TextUnmarshaler interface, which is used by mapstructure.TextUnmarshallerHookFunc.
func (d *TimeDuration) UnmarshalText(text []byte) error {
	return d.parse(string(text))
}

func (d *TimeDuration) parse(s string) error {
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return fmt.Errorf("negative value is not allowed: %d", num)
		}
		*d = TimeDuration(num)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid time duration format (%s): %w", s, err)
	}
	*d = TimeDuration(dur)
	return nil
}

// String returns the human-readable representation, e.g. "1m30s".
// Implements fmt.Stringer interface.
func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON encodes as a human-readable JSON string.
// Implements json.Marshaler interface.
func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalYAML encodes as a human-readable YAML string.
// Implements yaml.Marshaler interface.
func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalText encodes as human-readable text.
// Implements encoding.TextMarshaler interface.
func (d TimeDuration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
