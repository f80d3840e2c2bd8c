// Package sweep retires subscriptions whose consumer has gone away.
//
// A Sweeper periodically asks every tracked item for its liveness handle. Items
// without a handle are kept forever; items whose handle reports dead are
// destroyed and forgotten. Passes never overlap and a panicking handle or
// destroy call only affects the item that raised it.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

// DefaultInterval is the pause between two passes.
const DefaultInterval = time.Second

// Collectable is anything the sweeper can retire. *reactive.Watch satisfies it.
type Collectable interface {
	Liveness() reactive.Liveness
	Destroy()
	Destroyed() bool
}

// Sweeper holds the live set and runs the periodic pass.
type Sweeper struct {
	interval time.Duration
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer

	// mu protects items.
	mu    sync.Mutex
	items []Collectable

	// passMu serializes passes, whether run by the loop or by Sweep.
	passMu sync.Mutex

	// loopMu protects the loop state.
	loopMu  sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records every pass on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithTracer records a span per pass on t.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Sweeper) {
		s.tracer = t
	}
}

// New creates a stopped sweeper. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sweeper{
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sweeper")
	return s
}

// Interval returns the pause between passes.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Track adds items to the live set. Nil and already destroyed items are ignored.
func (s *Sweeper) Track(items ...Collectable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item == nil || item.Destroyed() {
			continue
		}
		s.items = append(s.items, item)
	}
}

// Len returns the number of tracked items.
func (s *Sweeper) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep runs one pass and returns the number of items destroyed.
// Items destroyed by someone else are dropped without being counted.
func (s *Sweeper) Sweep() int {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := time.Now()
	s.mu.Lock()
	items := make([]Collectable, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	_, span := s.tracer.StartSweep(context.Background(), len(items))

	dead := make(map[Collectable]struct{})
	collected := 0
	for _, item := range items {
		if item.Destroyed() {
			dead[item] = struct{}{}
			continue
		}
		if s.alive(item) {
			continue
		}
		dead[item] = struct{}{}
		if s.destroy(item) {
			collected++
		}
	}

	// Items tracked while the pass ran are kept.
	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if _, ok := dead[item]; !ok {
			kept = append(kept, item)
		}
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = nil
	}
	s.items = kept
	live := len(kept)
	s.mu.Unlock()

	s.metrics.ObserveSweep(time.Since(start), collected, live)
	telemetry.End(span, nil)
	if collected > 0 {
		s.logger.Debug("swept dead subscriptions",
			"collected", collected,
			"live", live)
	}
	return collected
}

// alive reports whether item is kept. A missing handle keeps it; a panicking
// handle counts as dead.
func (s *Sweeper) alive(item Collectable) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("liveness check panicked",
				"code", errors.CodeCallbackPanic,
				"error", fmt.Sprint(r))
			ok = false
		}
	}()
	liveness := item.Liveness()
	if liveness == nil {
		return true
	}
	return liveness.Alive()
}

func (s *Sweeper) destroy(item Collectable) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("destroy panicked",
				"code", errors.CodeCallbackPanic,
				"error", fmt.Sprint(r))
			ok = false
		}
	}()
	item.Destroy()
	return true
}

// Start launches the background loop. Calling Start on a running sweeper does nothing.
func (s *Sweeper) Start() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.loop(s.done, s.stopped)
}

// Stop ends the background loop and waits for a pass in progress to finish.
func (s *Sweeper) Stop() {
	s.loopMu.Lock()
	if !s.running {
		s.loopMu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	stopped := s.stopped
	s.loopMu.Unlock()

	<-stopped
}

// Running reports whether the background loop is active.
func (s *Sweeper) Running() bool {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	return s.running
}

// loop waits a full interval after each pass, so passes never overlap even
// when one runs longer than the interval.
func (s *Sweeper) loop(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.Sweep()
			timer.Reset(s.interval)
		case <-done:
			return
		}
	}
}
