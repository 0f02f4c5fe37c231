/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package mask

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/acronis/go-eventkit/event"
	"github.com/acronis/go-eventkit/log"
)

// Mask is used to mask a secret in strings.
type Mask struct {
	RegExp *regexp.Regexp
	Mask   string
}

type fieldMasks struct {
	field string // lowercase, empty means the masks always apply
	masks []Mask
}

// Masker is used to mask various secrets in strings.
// It is safe for concurrent use.
type Masker struct {
	rules     []fieldMasks
	hasAlways bool
	matcher   *ahocorasick.Matcher // nil when no rule has a field
	dictRules [][]int              // dictionary index -> rule indices
}

// NewMasker creates a new Masker from the list of masking rules.
// Rules apply in the order they are declared.
func NewMasker(rules []RuleConfig) (*Masker, error) {
	m := &Masker{rules: make([]fieldMasks, 0, len(rules))}
	dictIdx := make(map[string]int)
	var dictionary []string
	for i, rule := range rules {
		masks, err := newMasks(rule)
		if err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		field := strings.ToLower(rule.Field)
		m.rules = append(m.rules, fieldMasks{field: field, masks: masks})
		if field == "" {
			m.hasAlways = true
			continue
		}
		di, ok := dictIdx[field]
		if !ok {
			di = len(dictionary)
			dictIdx[field] = di
			dictionary = append(dictionary, field)
			m.dictRules = append(m.dictRules, nil)
		}
		m.dictRules[di] = append(m.dictRules[di], i)
	}
	if len(dictionary) != 0 {
		m.matcher = ahocorasick.NewStringMatcher(dictionary)
	}
	return m, nil
}

func newMasks(rule RuleConfig) ([]Mask, error) {
	masks := make([]Mask, 0, len(rule.Masks)+len(rule.Formats))
	for _, mc := range rule.Masks {
		re, err := regexp.Compile(mc.RegExp)
		if err != nil {
			return nil, fmt.Errorf("compile regexp %q: %w", mc.RegExp, err)
		}
		masks = append(masks, Mask{re, mc.Mask})
	}
	for _, format := range rule.Formats {
		var expr, repl string
		switch format {
		case FormatHTTPHeader:
			expr, repl = `(?i)`+rule.Field+`: .+?\r\n`, rule.Field+": ***\r\n"
		case FormatJSON:
			expr, repl = `(?i)"`+rule.Field+`"\s*:\s*".*?[^\\]"`, `"`+rule.Field+`": "***"`
		case FormatURLEncoded:
			expr, repl = `(?i)`+rule.Field+`\s*=\s*[^&\s]+`, rule.Field+"=***"
		default:
			return nil, fmt.Errorf("unknown format %q", format)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile regexp %q: %w", expr, err)
		}
		masks = append(masks, Mask{re, repl})
	}
	return masks, nil
}

// Mask masks all secrets found in s. Rules are filtered by a single Aho-Corasick
// pass over the lowercased string, only the rules whose field name occurs in s
// run their regexps. Rules without a field run unconditionally.
func (m *Masker) Mask(s string) string {
	if len(m.rules) == 0 {
		return s
	}
	var hits []int
	if m.matcher != nil {
		hits = m.matcher.MatchThreadSafe([]byte(strings.ToLower(s)))
	}
	if len(hits) == 0 && !m.hasAlways {
		return s
	}
	apply := make([]bool, len(m.rules))
	for _, h := range hits {
		for _, ri := range m.dictRules[h] {
			apply[ri] = true
		}
	}
	for i := range m.rules {
		if !apply[i] && m.rules[i].field != "" {
			continue
		}
		for _, mask := range m.rules[i].masks {
			s = mask.RegExp.ReplaceAllString(s, mask.Mask)
		}
	}
	return s
}

// Processor masks secret values in string fields of events.
type Processor struct {
	masker           *Masker
	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// Opts represents an options for the Processor.
type Opts struct {
	// Logger is used for logging.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics.
	MetricsCollector MetricsCollector
}

// New creates a new masking Processor.
func New(cfg *Config) (*Processor, error) {
	return NewWithOpts(cfg, Opts{})
}

// NewWithOpts creates a new masking Processor with the provided options.
func NewWithOpts(cfg *Config, opts Opts) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules := cfg.Rules
	if cfg.UseDefaultRules {
		rules = append(rules, DefaultRules...)
	}
	masker, err := NewMasker(rules)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}

	return &Processor{masker: masker, logger: logger, metricsCollector: metricsCollector}, nil
}

// Process masks secrets in all string values of the event.
// The passed event is never modified: when at least one value changes,
// a shallow copy with the masked values is returned, otherwise the event
// is returned as is. Process never fails and never suppresses an event.
func (p *Processor) Process(ev event.Event) event.Event {
	out := ev
	maskedFields := 0
	for k, v := range ev {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		masked := p.masker.Mask(s)
		if masked == s {
			continue
		}
		if maskedFields == 0 {
			out = ev.Clone()
		}
		out[k] = masked
		maskedFields++
	}
	if maskedFields != 0 {
		p.metricsCollector.AddMaskedFields(maskedFields)
		p.logger.Debug("masked secret values in event", log.Int("masked_fields", maskedFields))
	}
	return out
}
