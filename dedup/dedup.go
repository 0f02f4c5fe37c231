/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dedup

import (
	"fmt"
	"time"

	"github.com/acronis/go-eventkit/event"
	"github.com/acronis/go-eventkit/log"
	"github.com/acronis/go-eventkit/lrucache"
)

// Processor suppresses events whose signature was already seen within the configured window.
// Process returns the event unchanged for first-seen signatures and nil for duplicates.
type Processor struct {
	signer *event.Signer

	// seen maps an event signature to the moment it was first seen.
	// Entries expire exactly one window after that moment: duplicates never
	// refresh the expiry, so suppression follows first-seen semantics.
	seen *lrucache.LRUCache[string, time.Time]

	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// Opts represents options for the deduplication processor.
type Opts struct {
	// Logger is used for reporting signature errors. No-op logger is used if not specified.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics. No-op collector is used if not specified.
	MetricsCollector MetricsCollector

	// CacheMetricsCollector collects statistics of the underlying signature store.
	// Hits there are duplicates, and evictions signal that the store is too small
	// for the signature cardinality. No-op collector is used if not specified.
	CacheMetricsCollector lrucache.MetricsCollector
}

// New creates a new deduplication processor. Configuration is validated, and all errors
// (non-positive window, unknown hash algorithm) are reported here, never at Process time.
func New(cfg *Config) (*Processor, error) {
	return NewWithOpts(cfg, Opts{})
}

// NewWithOpts is a more configurable version of the New.
func NewWithOpts(cfg *Config, opts Opts) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	signer, err := event.NewSigner(cfg.Fields, cfg.HashAlg)
	if err != nil {
		return nil, err
	}

	maxSignatures := cfg.MaxTrackedSignatures
	if maxSignatures == 0 {
		maxSignatures = DefaultMaxTrackedSignatures
	}
	seen, err := lrucache.NewWithOpts[string, time.Time](maxSignatures, opts.CacheMetricsCollector,
		lrucache.Options{DefaultTTL: time.Duration(cfg.Window)})
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for signatures: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}

	return &Processor{
		signer:           signer,
		seen:             seen,
		logger:           logger,
		metricsCollector: metricsCollector,
	}, nil
}

// Process computes the event's signature and decides the event's fate.
// It returns nil if the signature was seen within the window and the event unchanged otherwise.
// The seen-or-added decision is made atomically, so for any signature exactly one of
// the concurrent callers gets the event through. Events whose signature cannot be
// computed pass through un-deduplicated. Process never blocks and is safe for concurrent use.
func (p *Processor) Process(ev event.Event) event.Event {
	sig, err := p.signer.Signature(ev)
	if err != nil {
		// A failing signer must not lose events, let the event pass.
		p.logger.Error("event signature failed, event passed through", log.Error(err))
		p.metricsCollector.IncSignatureErrors()
		return ev
	}

	if _, seen := p.seen.GetOrAdd(sig, time.Now); seen {
		p.metricsCollector.IncDuplicates()
		return nil
	}

	p.metricsCollector.IncPassed()
	p.metricsCollector.SetTrackedSignatures(p.seen.Len())
	return ev
}

// CleanupExpiredEntries removes signatures whose window has elapsed by the provided
// moment and returns the number of removed signatures.
// Implements cleanup.Target interface.
func (p *Processor) CleanupExpiredEntries(now time.Time) int {
	removed := p.seen.CleanupExpiredEntries(now)
	p.metricsCollector.SetTrackedSignatures(p.seen.Len())
	return removed
}

// Utilization returns the fraction ([0, 1]) of the signature-tracking capacity currently in use.
func (p *Processor) Utilization() float64 {
	return p.seen.Utilization()
}
