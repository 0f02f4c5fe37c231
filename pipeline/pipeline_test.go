/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-eventkit/circuitbreaker"
	"github.com/acronis/go-eventkit/config"
	"github.com/acronis/go-eventkit/event"
	"github.com/acronis/go-eventkit/eventqueue"
	"github.com/acronis/go-eventkit/log/logtest"
	"github.com/acronis/go-eventkit/testutil"
	"github.com/acronis/go-eventkit/throttle"
)

var errDeliveryFailed = errors.New("delivery failed")

// recordingSink captures delivered events and can be told to always fail.
type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
	calls  int
	fail   bool
}

func (s *recordingSink) Write(_ context.Context, batch []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return errDeliveryFailed
	}
	s.events = append(s.events, batch...)
	return nil
}

func (s *recordingSink) CallsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingSink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func startPipeline(t *testing.T, p *Pipeline) chan error {
	t.Helper()
	fatalError := make(chan error, 1)
	go p.Start(fatalError)
	return fatalError
}

func TestNewPipelineErrors(t *testing.T) {
	sink := &recordingSink{}

	_, err := New(nil, sink)
	require.EqualError(t, err, "config must not be nil")

	_, err = New(NewConfig(), nil)
	require.EqualError(t, err, "sink must not be nil")

	cfg := NewConfig()
	cfg.Throttle.Enabled = true
	_, err = New(cfg, sink)
	require.EqualError(t, err, "throttle: rate limit should be >= 1, got 0")
}

func TestPipelineSubmit(t *testing.T) {
	cfg := NewConfig()
	cfg.Queue.Capacity = 2
	cfg.Dedup.Enabled = true
	cfg.Dedup.Window = config.TimeDuration(time.Minute)
	p, err := New(cfg, &recordingSink{})
	require.NoError(t, err)

	evA := event.Event{"msg": "disk is full", "server": "web-1"}
	evB := event.Event{"msg": "disk is full", "server": "web-2"}
	evC := event.Event{"msg": "out of memory", "server": "web-3"}

	require.Equal(t, SubmitAccepted, p.Submit(evA))
	require.Equal(t, SubmitSuppressed, p.Submit(evA.Clone()), "duplicate within the window")
	require.Equal(t, SubmitAccepted, p.Submit(evB))
	require.Equal(t, SubmitDropped, p.Submit(evC), "queue is full")
	require.Equal(t, 2, p.QueueLen())
}

func TestPipelineDeliversToSink(t *testing.T) {
	sink := &recordingSink{}
	cfg := NewConfig()
	cfg.Queue.BatchSize = 2
	cfg.Queue.BatchTimeout = config.TimeDuration(10 * time.Millisecond)
	p, err := New(cfg, sink)
	require.NoError(t, err)

	fatalError := startPipeline(t, p)
	const eventsNum = 5
	for i := 0; i < eventsNum; i++ {
		require.Equal(t, SubmitAccepted, p.Submit(event.Event{"msg": "something happened", "n": i}))
	}
	require.NoError(t, p.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalError)

	delivered := sink.Events()
	require.Len(t, delivered, eventsNum)
	for i, ev := range delivered {
		n, ok := ev.Field("n")
		require.True(t, ok)
		require.Equal(t, i, n, "delivery order should match the submission order")
	}

	require.Equal(t, SubmitDropped, p.Submit(event.Event{"msg": "too late"}),
		"the queue is closed after the pipeline is stopped")
}

func TestPipelineThrottling(t *testing.T) {
	cfg := NewConfig()
	cfg.Throttle.Enabled = true
	cfg.Throttle.KeyField = "tenant_id"
	cfg.Throttle.Rate = throttle.RateValue{Count: 1, Duration: time.Minute}
	p, err := New(cfg, &recordingSink{})
	require.NoError(t, err)

	require.Equal(t, SubmitAccepted, p.Submit(event.Event{"msg": "m1", "tenant_id": "t1"}))
	require.Equal(t, SubmitSuppressed, p.Submit(event.Event{"msg": "m2", "tenant_id": "t1"}))
	require.Equal(t, SubmitAccepted, p.Submit(event.Event{"msg": "m3", "tenant_id": "t2"}),
		"the limit is tracked per key")
}

func TestPipelineMasking(t *testing.T) {
	var seen []string
	inspecting := ProcessorFunc(func(ev event.Event) event.Event {
		if s, ok := ev.StringField("msg"); ok {
			seen = append(seen, s)
		}
		if lvl, _ := ev.StringField("level"); lvl == "debug" {
			return nil
		}
		return ev
	})

	cfg := NewConfig()
	cfg.Mask.Enabled = true
	p, err := NewWithOpts(cfg, &recordingSink{}, Opts{ExtraProcessors: []Processor{inspecting}})
	require.NoError(t, err)

	require.Equal(t, SubmitSuppressed, p.Submit(event.Event{"level": "debug", "msg": "noise"}))
	require.Equal(t, SubmitAccepted, p.Submit(
		event.Event{"level": "error", "msg": `login failed: {"password": "qwerty"}`}))

	// Extra processors run after the built-in stages and observe already masked values.
	require.Equal(t, []string{"noise", `login failed: {"password": "***"}`}, seen)
}

func TestPipelineCircuitBreaker(t *testing.T) {
	sink := &recordingSink{fail: true}
	cfg := NewConfig()
	cfg.Queue.BatchSize = 1
	cfg.Queue.MaxRetries = eventqueue.NoRetries
	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.FailureThreshold = 2
	cfg.CircuitBreaker.RecoveryTimeout = config.TimeDuration(time.Hour)
	p, err := New(cfg, sink)
	require.NoError(t, err)

	fatalError := startPipeline(t, p)
	for i := 0; i < 3; i++ {
		require.Equal(t, SubmitAccepted, p.Submit(event.Event{"n": i}))
	}
	require.NoError(t, p.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalError)

	// The breaker opens after the second failed delivery, the third batch fails fast
	// without reaching the sink.
	require.Equal(t, 2, sink.CallsCount())
	require.Equal(t, circuitbreaker.StateOpen, p.breaker.State())
}

func TestPipelineMetrics(t *testing.T) {
	pm := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{Namespace: "pipeline_test"})
	cfg := NewConfig()
	cfg.Dedup.Enabled = true
	cfg.Dedup.Window = config.TimeDuration(time.Minute)
	p, err := NewWithOpts(cfg, &recordingSink{}, Opts{Metrics: pm})
	require.NoError(t, err)

	p.MustRegisterMetrics()
	defer p.UnregisterMetrics()

	ev := event.Event{"msg": "disk is full"}
	require.Equal(t, SubmitAccepted, p.Submit(ev))
	require.Equal(t, SubmitSuppressed, p.Submit(ev.Clone()))

	testutil.RequireSamplesCountInCounter(t, pm.Queue.AcceptedTotal.With(nil), 1)
	testutil.RequireSamplesCountInCounter(t, pm.Dedup.DuplicatesTotal.With(nil), 1)
}

func TestPipelineStatsLogging(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	cfg := NewConfig()
	cfg.StatsLogInterval = config.TimeDuration(20 * time.Millisecond)
	cfg.Throttle.Enabled = true
	cfg.Throttle.Rate = throttle.RateValue{Count: 1000, Duration: time.Second}
	p, err := NewWithOpts(cfg, &recordingSink{}, Opts{Logger: logRecorder})
	require.NoError(t, err)

	fatalError := startPipeline(t, p)
	require.Eventually(t, func() bool {
		_, found := logRecorder.FindEntry("event pipeline stats")
		return found
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalError)

	logEntry, found := logRecorder.FindEntry("event pipeline stats")
	require.True(t, found)
	logField, found := logEntry.FindField("queue_capacity")
	require.True(t, found)
	require.Equal(t, eventqueue.DefaultCapacity, int(logField.Int))
	_, found = logEntry.FindField("throttle_utilization")
	require.True(t, found)
}
