package binding

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
	"github.com/vango-dev/reactor/pkg/sweep"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}

// Binder creates and owns bindings, property watches and reaction groups.
type Binder struct {
	evaluator *sandbox.Evaluator
	sweeper   *sweep.Sweeper
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	mu       sync.Mutex
	bindings []*Binding
	groups   []*Group
	watches  []*reactive.Watch

	destroyed atomic.Bool
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records the active bindings gauge on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Binder) {
		b.metrics = m
	}
}

// New creates a binder evaluating with ev. Subscriptions are tracked by sw;
// a nil sweeper disables automatic collection.
func New(ev *sandbox.Evaluator, sw *sweep.Sweeper, opts ...Option) *Binder {
	b := &Binder{
		evaluator: ev,
		sweeper:   sw,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "binder")
	return b
}

// Evaluator returns the evaluator bindings run on.
func (b *Binder) Evaluator() *sandbox.Evaluator {
	return b.evaluator
}

// Bind creates a one-way binding and runs its first evaluation.
func (b *Binder) Bind(opts Options) *Binding {
	return b.bind(newBinding(b, opts, nil))
}

// BindTwoWay creates a two-way binding and runs its first evaluation.
// A binding whose configuration is invalid is returned destroyed with Err set.
func (b *Binder) BindTwoWay(opts TwoWayOptions) *Binding {
	return b.bind(newBinding(b, opts.Options, &twoWay{
		model:    opts.Model,
		selects:  opts.Select,
		multiple: opts.Multiple,
	}))
}

func (b *Binder) bind(binding *Binding) *Binding {
	if b.destroyed.Load() {
		binding.state = StateDestroyed
		return binding
	}

	b.mu.Lock()
	b.bindings = append(b.bindings, binding)
	b.mu.Unlock()

	binding.Refresh()
	b.track(binding)
	return binding
}

// Watch subscribes callback to one property of data. It returns nil when data
// has no such property.
func (b *Binder) Watch(data *reactive.Object, property string, callback reactive.Callback, liveness reactive.Liveness) *reactive.Watch {
	if data == nil {
		return nil
	}
	cell, ok := data.Cell(property)
	if !ok {
		return nil
	}
	w := cell.Watch(callback, liveness)

	b.mu.Lock()
	b.watches = append(b.watches, w)
	b.mu.Unlock()

	b.track(w)
	return w
}

// React runs fn and re-runs it whenever a cell it read changes.
func (b *Binder) React(fn func(), liveness reactive.Liveness) *Group {
	g := &Group{
		id:       nextID(),
		binder:   b,
		fn:       fn,
		liveness: liveness,
		seen:     make(map[*reactive.Cell]struct{}),
	}
	if b.destroyed.Load() {
		g.destroyed.Store(true)
		return g
	}

	b.mu.Lock()
	b.groups = append(b.groups, g)
	b.mu.Unlock()

	g.run()
	b.track(g)
	return g
}

// Unbind destroys every binding and group attached to liveness and returns how
// many were destroyed.
func (b *Binder) Unbind(liveness reactive.Liveness) int {
	if liveness == nil {
		return 0
	}
	n := 0
	for _, binding := range b.Bindings() {
		if sameLiveness(binding.Liveness(), liveness) && !binding.Destroyed() {
			binding.Destroy()
			n++
		}
	}
	for _, g := range b.Groups() {
		if sameLiveness(g.Liveness(), liveness) && !g.Destroyed() {
			g.Destroy()
			n++
		}
	}
	return n
}

// Bindings returns the bindings that are not destroyed.
func (b *Binder) Bindings() []*Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := b.bindings[:0]
	for _, binding := range b.bindings {
		if !binding.Destroyed() {
			live = append(live, binding)
		}
	}
	for i := len(live); i < len(b.bindings); i++ {
		b.bindings[i] = nil
	}
	b.bindings = live

	out := make([]*Binding, len(live))
	copy(out, live)
	return out
}

// Groups returns the reaction groups that are not destroyed.
func (b *Binder) Groups() []*Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Group, 0, len(b.groups))
	for _, g := range b.groups {
		if !g.Destroyed() {
			out = append(out, g)
		}
	}
	return out
}

// Destroy destroys everything the binder created. New bindings are created
// already destroyed afterwards.
func (b *Binder) Destroy() {
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	bindings, groups, watches := b.bindings, b.groups, b.watches
	b.bindings, b.groups, b.watches = nil, nil, nil
	b.mu.Unlock()

	for _, binding := range bindings {
		binding.Destroy()
	}
	for _, g := range groups {
		g.Destroy()
	}
	for _, w := range watches {
		w.Destroy()
	}
}

// Destroyed reports whether Destroy has been called.
func (b *Binder) Destroyed() bool {
	return b.destroyed.Load()
}

func (b *Binder) track(item sweep.Collectable) {
	if b.sweeper != nil {
		b.sweeper.Track(item)
	}
}

// sameLiveness compares two handles by identity. Handles of non-comparable
// types such as LivenessFunc never match.
func sameLiveness(a, b reactive.Liveness) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
