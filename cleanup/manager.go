/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cleanup

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/acronis/go-eventkit/log"
)

// Default values for the Manager options.
const (
	DefaultInterval    = time.Minute
	DefaultMaxDuration = 30 * time.Second
)

// Target is a structure whose expired entries the Manager reclaims.
type Target interface {
	// CleanupExpiredEntries removes all entries expired at the passed moment
	// and returns the number of removed entries.
	CleanupExpiredEntries(now time.Time) int
}

// TargetFunc is an adapter to allow the use of ordinary functions as Target.
type TargetFunc func(now time.Time) int

// CleanupExpiredEntries is a part of Target interface.
func (f TargetFunc) CleanupExpiredEntries(now time.Time) int {
	return f(now)
}

// Manager amortizes memory reclamation of a Target off the producer path.
// Passes run periodically (Interval), on demand (ScheduleCleanup/ForceCleanup),
// or when the target's utilization crosses ThresholdRatio.
// At most one pass executes at a time, and every pass is bounded by a hard MaxDuration deadline.
type Manager struct {
	target           Target
	interval         time.Duration
	thresholdRatio   float64
	utilization      func() float64
	maxDuration      time.Duration
	logger           log.FieldLogger
	metricsCollector MetricsCollector

	// tasks has capacity 1, its free slot is the scheduling capacity.
	tasks chan time.Time

	mu            sync.Mutex
	running       bool
	lastCleanupAt time.Time
}

// Opts represents an options for Manager.
type Opts struct {
	// Interval is how often the Run loop attempts a cleanup pass.
	// DefaultInterval is used if it's not specified.
	Interval time.Duration

	// ThresholdRatio triggers an out-of-schedule pass when Utilization reports a value
	// greater than or equal to it. Zero disables utilization-based triggering.
	ThresholdRatio float64

	// Utilization reports the target's fill ratio in the [0, 1] range.
	// It's consulted only when ThresholdRatio is specified.
	Utilization func() float64

	// MaxDuration is a hard deadline for a single cleanup pass.
	// A pass exceeding it is abandoned and retried on the next occasion.
	// DefaultMaxDuration is used if it's not specified.
	MaxDuration time.Duration

	// Logger is used for logging cleanup passes. No logging is done if it's not specified.
	Logger log.FieldLogger

	// MetricsCollector is a collector of the manager's metrics.
	// If not specified, metrics collecting will be disabled.
	MetricsCollector MetricsCollector
}

// New creates a new Manager for the passed target with default options.
func New(target Target) (*Manager, error) {
	return NewWithOpts(target, Opts{})
}

// NewWithOpts is a more configurable version of the Manager creation.
func NewWithOpts(target Target, opts Opts) (*Manager, error) {
	if target == nil {
		return nil, fmt.Errorf("target must not be nil")
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative, got %s", opts.Interval)
	}
	if opts.MaxDuration < 0 {
		return nil, fmt.Errorf("maxDuration must not be negative, got %s", opts.MaxDuration)
	}
	if opts.ThresholdRatio < 0 || opts.ThresholdRatio > 1 {
		return nil, fmt.Errorf("thresholdRatio must be in range [0, 1], got %v", opts.ThresholdRatio)
	}
	if opts.ThresholdRatio > 0 && opts.Utilization == nil {
		return nil, fmt.Errorf("utilization func is required when thresholdRatio is specified")
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	maxDuration := opts.MaxDuration
	if maxDuration == 0 {
		maxDuration = DefaultMaxDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	return &Manager{
		target:           target,
		interval:         interval,
		thresholdRatio:   opts.ThresholdRatio,
		utilization:      opts.Utilization,
		maxDuration:      maxDuration,
		logger:           logger,
		metricsCollector: metricsCollector,
		tasks:            make(chan time.Time, 1),
		lastCleanupAt:    time.Now(),
	}, nil
}

// ScheduleCleanup queues a cleanup pass for execution in the Run loop
// and reports whether it was queued.
// Without force, the pass is queued only if the interval has elapsed since the last
// successful pass or the target's utilization has crossed the threshold.
// It returns false while a pass is already running or queued.
func (m *Manager) ScheduleCleanup(now time.Time, force bool) bool {
	if !m.shouldCleanup(now, force) {
		return false
	}
	select {
	case m.tasks <- now:
		return true
	default:
		return false
	}
}

// ForceCleanup synchronously runs a cleanup pass bypassing the interval and utilization gates.
// It returns the number of removed entries and true on success,
// and zero and false if another pass is in progress or the pass missed its deadline.
func (m *Manager) ForceCleanup(now time.Time) (removed int, ok bool) {
	return m.runPass(now)
}

// Run executes queued and periodic cleanup passes until ctx is done.
// It always returns nil and implements service.Worker.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Infof("running cleanup manager (interval=%s, maxDuration=%s)...", m.interval, m.maxDuration)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("cleanup manager stopped")
			return nil
		case now := <-m.tasks:
			m.runPass(now)
		case <-ticker.C:
			now := time.Now()
			if m.shouldCleanup(now, false) {
				m.runPass(now)
			}
		}
	}
}

func (m *Manager) shouldCleanup(now time.Time, force bool) bool {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return false
	}
	due := force || now.Sub(m.lastCleanupAt) >= m.interval
	m.mu.Unlock()
	if due {
		return true
	}
	if m.thresholdRatio == 0 {
		return false
	}
	return m.utilization() >= m.thresholdRatio
}

type passResult struct {
	removed  int
	panicked bool
}

func (m *Manager) runPass(now time.Time) (removed int, ok bool) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return 0, false
	}
	m.running = true
	m.mu.Unlock()

	startTime := time.Now()

	// The pass runs in its own goroutine so that an overrunning target can be abandoned.
	// The goroutine releases the running flag only after the target returns,
	// an abandoned pass keeps holding mutual exclusion until then.
	done := make(chan passResult, 1)
	go func() {
		var res passResult
		func() {
			defer func() {
				if p := recover(); p != nil {
					res.panicked = true
					const logStackSize = 8192
					stack := make([]byte, logStackSize)
					stack = stack[:runtime.Stack(stack, false)]
					m.logger.Error(fmt.Sprintf("panic in cleanup pass: %+v", p), log.Bytes("stack", stack))
				}
			}()
			res.removed = m.target.CleanupExpiredEntries(now)
		}()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		done <- res
	}()

	deadline := time.NewTimer(m.maxDuration)
	defer deadline.Stop()

	select {
	case res := <-done:
		if res.panicked {
			return 0, false
		}
		m.mu.Lock()
		m.lastCleanupAt = now
		m.mu.Unlock()
		passDuration := time.Since(startTime)
		m.metricsCollector.IncPasses()
		m.metricsCollector.AddRemovedEntries(res.removed)
		m.metricsCollector.ObservePassDuration(passDuration)
		m.logger.Debug("cleanup pass finished",
			log.Int("removed_entries", res.removed), log.DurationIn(passDuration, time.Millisecond))
		return res.removed, true
	case <-deadline.C:
		m.metricsCollector.IncTimeouts()
		m.logger.Error("cleanup pass exceeded max duration and was abandoned",
			log.Duration("max_duration", m.maxDuration))
		return 0, false
	}
}
