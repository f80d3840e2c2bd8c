// Package events delivers named application events to listeners.
//
// Listeners may be attached to a liveness handle. Emitting with a target only
// reaches listeners attached to that handle, and listeners whose handle dies
// are retired by the liveness sweeper like any other subscription.
package events

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
	"github.com/vango-dev/reactor/pkg/sweep"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

// Event is one emission.
type Event struct {
	Name    string
	Payload any
	Target  reactive.Liveness
}

// Listener receives events.
type Listener func(Event)

// Subscription is a registered listener.
type Subscription struct {
	id       uint64
	handler  *Handler
	name     string
	listener Listener
	target   reactive.Liveness
	once     bool

	destroyed atomic.Bool
}

// ID returns the unique identifier for this subscription.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Name returns the event name.
func (s *Subscription) Name() string {
	return s.name
}

// Liveness returns the handle the listener is attached to, nil if none.
func (s *Subscription) Liveness() reactive.Liveness {
	return s.target
}

// Destroyed reports whether the listener was removed.
func (s *Subscription) Destroyed() bool {
	return s.destroyed.Load()
}

// Destroy removes the listener.
func (s *Subscription) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	s.handler.remove(s)
}

// OnOption configures a listener.
type OnOption func(*Subscription)

// WithTarget attaches the listener to a liveness handle.
func WithTarget(target reactive.Liveness) OnOption {
	return func(s *Subscription) {
		s.target = target
	}
}

// WithOnce removes the listener after its first event.
func WithOnce() OnOption {
	return func(s *Subscription) {
		s.once = true
	}
}

// EmitOptions configures an emission.
type EmitOptions struct {
	// Target restricts delivery to listeners attached to this handle.
	Target reactive.Liveness

	// Once removes every listener that received the event.
	Once bool
}

// Handler is the event registry of a runtime.
type Handler struct {
	evaluator *sandbox.Evaluator
	sweeper   *sweep.Sweeper
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	mu        sync.RWMutex
	listeners map[string][]*Subscription
	nextID    atomic.Uint64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics counts emissions on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New creates a handler. ev runs expression listeners and sw collects
// listeners whose target died; either may be nil.
func New(ev *sandbox.Evaluator, sw *sweep.Sweeper, opts ...Option) *Handler {
	h := &Handler{
		evaluator: ev,
		sweeper:   sw,
		logger:    slog.Default(),
		listeners: make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "events")
	return h
}

// On registers listener for name.
func (h *Handler) On(name string, listener Listener, opts ...OnOption) *Subscription {
	s := &Subscription{
		id:       h.nextID.Add(1),
		handler:  h,
		name:     name,
		listener: listener,
	}
	for _, opt := range opts {
		opt(s)
	}

	h.mu.Lock()
	h.listeners[name] = append(h.listeners[name], s)
	h.mu.Unlock()

	if s.target != nil && h.sweeper != nil {
		h.sweeper.Track(s)
	}
	return s
}

// Off removes the listeners of name. With a non-nil target only listeners
// attached to it are removed. Returns how many were removed.
func (h *Handler) Off(name string, target reactive.Liveness) int {
	n := 0
	for _, s := range h.snapshot(name) {
		if target != nil && !sameTarget(s.target, target) {
			continue
		}
		if !s.Destroyed() {
			s.Destroy()
			n++
		}
	}
	return n
}

// Emit delivers an event to the listeners of name registered at call time, in
// registration order, and returns how many received it. Listener panics are
// logged and do not stop delivery.
func (h *Handler) Emit(name string, payload any, opts EmitOptions) int {
	h.metrics.IncEvents()
	ev := Event{Name: name, Payload: payload, Target: opts.Target}

	n := 0
	for _, s := range h.snapshot(name) {
		if opts.Target != nil && !sameTarget(s.target, opts.Target) {
			continue
		}
		if s.once || opts.Once {
			if !s.destroyed.CompareAndSwap(false, true) {
				continue
			}
			h.remove(s)
		} else if s.Destroyed() {
			continue
		}
		h.deliver(s, ev)
		n++
	}
	return n
}

// Len returns the number of listeners registered for name.
func (h *Handler) Len(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[name])
}

// Names returns the event names that have listeners, sorted.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.listeners))
	for name, list := range h.listeners {
		if len(list) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Expression returns a listener evaluating expr against data. The event is
// available as "event" and as the first argument; a function-valued result is
// called with the event, so both "count++" and "onSave" work as handlers.
func (h *Handler) Expression(expr string, data *reactive.Object, this any) Listener {
	return func(e Event) {
		if h.evaluator == nil {
			return
		}
		event := map[string]any{
			"name":   e.Name,
			"detail": e.Payload,
		}
		h.evaluator.Evaluate(sandbox.Options{
			Expression: expr,
			Data:       data,
			Extras:     map[string]any{"event": event},
			Args:       []any{event},
			Context:    this,
			Invoke:     true,
		})
	}
}

func (h *Handler) deliver(s *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event listener panicked",
				"code", errors.CodeCallbackPanic,
				"event", e.Name,
				"subscription_id", s.id,
				"error", fmt.Sprint(r))
		}
	}()
	s.listener(e)
}

func (h *Handler) snapshot(name string) []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.listeners[name]
	out := make([]*Subscription, len(list))
	copy(out, list)
	return out
}

func (h *Handler) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.listeners[s.name]
	for i, existing := range list {
		if existing == s {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.listeners, s.name)
		return
	}
	h.listeners[s.name] = list
}

// sameTarget compares handles by identity. Handles of non-comparable types
// never match.
func sameTarget(a, b reactive.Liveness) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
