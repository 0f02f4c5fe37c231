/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/fnv"
	"io"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"
	"github.com/vasayxtx/go-glob"
)

// HashAlg is an algorithm used for computing event signatures.
// Correctness of deduplication does not depend on which algorithm is chosen,
// only on its determinism.
type HashAlg string

// Supported signature hash algorithms.
const (
	HashAlgXXHash HashAlg = "xxhash"
	HashAlgSHA256 HashAlg = "sha256"
	HashAlgFNV    HashAlg = "fnv"
)

// ErrNoFieldsMatched is returned by Signer.Signature when none of the configured
// field patterns matched any field of the event. Computing a signature over an
// empty field set would make all such events duplicates of each other,
// so the caller is expected to fail open instead.
var ErrNoFieldsMatched = fmt.Errorf("no event fields matched signature patterns")

// Signer computes deterministic signatures over a configurable subset of event fields.
// Field names may be exact or glob patterns (e.g. "ctx.*").
// An empty pattern list means all fields participate in the signature.
type Signer struct {
	alg      HashAlg
	patterns []func(s string) bool
}

// NewSigner creates a new Signer for the given field patterns and hash algorithm.
// Empty alg defaults to HashAlgXXHash.
func NewSigner(fields []string, alg HashAlg) (*Signer, error) {
	if alg == "" {
		alg = HashAlgXXHash
	}
	switch alg {
	case HashAlgXXHash, HashAlgSHA256, HashAlgFNV:
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", alg)
	}
	s := &Signer{alg: alg}
	for _, f := range fields {
		s.patterns = append(s.patterns, glob.Compile(f))
	}
	return s, nil
}

// Signature computes the signature of the event.
// Matching fields are processed in sorted-name order, so the result does not
// depend on map iteration order.
func (s *Signer) Signature(ev Event) (string, error) {
	names := make([]string, 0, len(ev))
	for name := range ev {
		if s.matches(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", ErrNoFieldsMatched
	}
	sort.Strings(names)

	var h hash.Hash
	switch s.alg {
	case HashAlgSHA256:
		h = sha256.New()
	case HashAlgFNV:
		h = fnv.New64a()
	default:
		d := xxhash.New()
		writeFields(d, ev, names)
		return strconv.FormatUint(d.Sum64(), 16), nil
	}
	writeFields(h, ev, names)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Signer) matches(name string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, match := range s.patterns {
		if match(name) {
			return true
		}
	}
	return false
}

func writeFields(w io.Writer, ev Event, names []string) {
	for _, name := range names {
		_, _ = io.WriteString(w, name)
		_, _ = io.WriteString(w, "\x00")
		_, _ = io.WriteString(w, valueString(ev[name]))
		_, _ = io.WriteString(w, "\x01")
	}
}

// valueString renders a field value deterministically.
// fmt prints maps in sorted key order, so the fallback is stable too.
func valueString(v interface{}) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}
