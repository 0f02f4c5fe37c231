/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package mask provides a processor that scrubs secret values
// (credentials, tokens, arbitrary configured patterns) from string fields
// of events before they are buffered and shipped anywhere.
//
// A masking rule names a field ("password", "authorization") and carries
// regular expression masks for it, either written out explicitly or derived
// from the well-known formats (JSON, URL-encoded, HTTP header).
// Rule regexps run only on values that contain the rule's field name,
// which an Aho-Corasick matcher over all field names detects in a single pass.
// A rule without a field applies to every value.
//
// Masking never fails: a value that cannot be masked is returned as is.
package mask
