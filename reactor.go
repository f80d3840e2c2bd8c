// Package reactor provides the public API of the reactive kernel.
//
// A Runtime owns one reactive data object, a global data layer, the
// expression evaluator, bindings, named events, keyed stores and the
// liveness sweeper that collects subscriptions whose consumers are gone.
//
// Usage:
//
//	rt, err := reactor.New(reactor.Config{
//	    Data: map[string]any{"first": "Ada", "last": "Lovelace"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer rt.Destroy()
//
//	b := rt.Bind(binding.Options{
//	    Expression: "first + ' ' + last",
//	    Liveness:   node,
//	    Sink:       func(v any) { node.SetText(fmt.Sprint(v)) },
//	})
//
//	rt.Data().Set("first", "Augusta") // sink receives "Augusta Lovelace"
package reactor

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/binding"
	"github.com/vango-dev/reactor/pkg/events"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
	"github.com/vango-dev/reactor/pkg/store"
	"github.com/vango-dev/reactor/pkg/sweep"
)

// Lifecycle events emitted by Destroy.
const (
	EventBeforeDestroy = "beforeDestroy"
	EventDestroyed     = "destroyed"
)

// DefaultLazyWait is the debounce delay Lazy uses for a non-positive wait.
const DefaultLazyWait = 500 * time.Millisecond

// Runtime is one reactive instance.
type Runtime struct {
	config Config
	logger *slog.Logger

	owner     *reactive.Owner
	data      *reactive.Object
	global    *reactive.Object
	evaluator *sandbox.Evaluator
	sweeper   *sweep.Sweeper
	binder    *binding.Binder
	events    *events.Handler
	store     *store.Store
	writes    *reactive.Handle

	// mu serializes work submitted through Do.
	mu        sync.Mutex
	destroyed atomic.Bool
}

// New creates a runtime from cfg and starts its sweeper.
func New(cfg Config) (*Runtime, error) {
	if cfg.EvalTimeout < 0 {
		return nil, errors.New(errors.CodeInvalidInput).
			WithDetail(fmt.Sprintf("eval timeout %s is negative", cfg.EvalTimeout))
	}
	cfg = cfg.withDefaults()

	rt := &Runtime{
		config: cfg,
		logger: cfg.Logger.With("component", "runtime"),
	}
	rt.owner = reactive.NewOwner(reactive.WithLogger(cfg.Logger))
	rt.data = rt.owner.Object(cfg.Data)
	rt.global = rt.owner.Object(cfg.GlobalData)

	rt.evaluator = sandbox.New(
		sandbox.WithGlobal(rt.global),
		sandbox.WithRoot(rt.data),
		sandbox.WithContext(rt),
		sandbox.WithLogger(cfg.Logger),
		sandbox.WithTimeout(cfg.EvalTimeout),
		sandbox.WithCacheSize(cfg.ProgramCacheSize),
		sandbox.WithMetrics(cfg.Metrics),
		sandbox.WithTracer(cfg.Tracer),
	)
	rt.sweeper = sweep.New(cfg.SweepInterval,
		sweep.WithLogger(cfg.Logger),
		sweep.WithMetrics(cfg.Metrics),
		sweep.WithTracer(cfg.Tracer),
	)
	rt.binder = binding.New(rt.evaluator, rt.sweeper,
		binding.WithLogger(cfg.Logger),
		binding.WithMetrics(cfg.Metrics),
	)
	rt.events = events.New(rt.evaluator, rt.sweeper,
		events.WithLogger(cfg.Logger),
		events.WithMetrics(cfg.Metrics),
	)
	rt.store = store.New(rt.owner, store.WithLogger(cfg.Logger))

	if cfg.Metrics != nil {
		rt.writes = rt.owner.Bus().On(reactive.SignalWrite, func(*reactive.Cell) {
			cfg.Metrics.IncWrites()
		})
	}

	if cfg.SweepInterval > 0 {
		rt.sweeper.Start()
	}

	rt.logger.Debug("runtime created",
		"owner", rt.owner.ID(),
		"keys", len(rt.data.Keys()),
		"sweep_interval", cfg.SweepInterval)
	return rt, nil
}

// =============================================================================
// Accessors
// =============================================================================

// Config returns the configuration the runtime was created with.
func (r *Runtime) Config() Config { return r.config }

// Data returns the reactive instance data.
func (r *Runtime) Data() *reactive.Object { return r.data }

// GlobalData returns the reactive global data layer.
func (r *Runtime) GlobalData() *reactive.Object { return r.global }

// Owner returns the owner every reactive value of the runtime belongs to.
func (r *Runtime) Owner() *reactive.Owner { return r.owner }

// Bus returns the access signal bus.
func (r *Runtime) Bus() *reactive.Bus { return r.owner.Bus() }

// Evaluator returns the expression evaluator.
func (r *Runtime) Evaluator() *sandbox.Evaluator { return r.evaluator }

// Binder returns the binding registry.
func (r *Runtime) Binder() *binding.Binder { return r.binder }

// Events returns the named event handler.
func (r *Runtime) Events() *events.Handler { return r.events }

// Store returns the keyed data store.
func (r *Runtime) Store() *store.Store { return r.store }

// Sweeper returns the liveness sweeper.
func (r *Runtime) Sweeper() *sweep.Sweeper { return r.sweeper }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// =============================================================================
// Evaluation
// =============================================================================

// Evaluate runs an expression against the instance data unless opts.Data is set.
// Errors are logged and yield nil; use Exec to receive them.
func (r *Runtime) Evaluate(opts sandbox.Options) any {
	return r.evaluator.Evaluate(r.scoped(opts))
}

// Exec is Evaluate with the error returned.
func (r *Runtime) Exec(opts sandbox.Options) (any, error) {
	return r.evaluator.Exec(r.scoped(opts))
}

// Run executes statements with the runtime as this and no scope data: local,
// global and $root are all out of reach.
func (r *Runtime) Run(statements string) any {
	return r.evaluator.Run(statements, r)
}

func (r *Runtime) scoped(opts sandbox.Options) sandbox.Options {
	if opts.Data == nil {
		opts.Data = r.data
	}
	return opts
}

// =============================================================================
// Reactivity
// =============================================================================

// Set transforms input and moves each of its cells into target, or into the
// instance data when target is nil. Watches of replaced cells follow the new
// cell and are notified.
func (r *Runtime) Set(input map[string]any, target *reactive.Object) *reactive.Object {
	if target == nil {
		target = r.data
	}
	src := r.owner.Object(input)
	for _, key := range src.Keys() {
		target.Transfer(key, src)
	}
	return target
}

// Watch subscribes callback to property of the instance data.
// Returns nil when the property does not exist.
func (r *Runtime) Watch(property string, callback reactive.Callback, liveness reactive.Liveness) *reactive.Watch {
	return r.binder.Watch(r.data, property, callback, liveness)
}

// React runs fn now and again whenever a cell it read changes.
func (r *Runtime) React(fn func(), liveness reactive.Liveness) *binding.Group {
	return r.binder.React(fn, liveness)
}

// Bind creates a one-way binding on the instance data unless opts.Data is set.
func (r *Runtime) Bind(opts binding.Options) *binding.Binding {
	if opts.Data == nil {
		opts.Data = r.data
	}
	return r.binder.Bind(opts)
}

// BindTwoWay creates a two-way binding on the instance data unless opts.Data is set.
func (r *Runtime) BindTwoWay(opts binding.TwoWayOptions) *binding.Binding {
	if opts.Data == nil {
		opts.Data = r.data
	}
	return r.binder.BindTwoWay(opts)
}

// Unbind destroys every binding, group and watch attached to liveness.
func (r *Runtime) Unbind(liveness reactive.Liveness) int {
	return r.binder.Unbind(liveness)
}

// Sweep runs one liveness pass immediately and returns the number collected.
func (r *Runtime) Sweep() int {
	return r.sweeper.Sweep()
}

// =============================================================================
// Events
// =============================================================================

// On subscribes listener to the named event.
func (r *Runtime) On(name string, listener events.Listener, opts ...events.OnOption) *events.Subscription {
	return r.events.On(name, listener, opts...)
}

// Off removes the listeners of name attached to target, or all of them when
// target is nil.
func (r *Runtime) Off(name string, target reactive.Liveness) int {
	return r.events.Off(name, target)
}

// Emit delivers payload to the listeners of name.
func (r *Runtime) Emit(name string, payload any, opts ...events.EmitOptions) int {
	var o events.EmitOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return r.events.Emit(name, payload, o)
}

// =============================================================================
// Scheduling
// =============================================================================

// Do runs fn while holding the runtime lock. Work arriving from other
// goroutines (timers, connections) goes through Do so that it never
// interleaves. fn must not call Do itself.
func (r *Runtime) Do(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Lazy returns a debounced fn: repeated calls within wait collapse into one
// call with the latest arguments, made through Do once wait has elapsed
// since the last call.
func (r *Runtime) Lazy(fn func(args ...any), wait time.Duration) func(args ...any) {
	if wait <= 0 {
		wait = DefaultLazyWait
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
		last  []any
	)
	return func(args ...any) {
		mu.Lock()
		defer mu.Unlock()
		last = args
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, func() {
			mu.Lock()
			call := last
			timer = nil
			mu.Unlock()
			if r.destroyed.Load() {
				return
			}
			r.Do(func() { fn(call...) })
		})
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Destroy emits EventBeforeDestroy, stops the sweeper, destroys every binding
// and emits EventDestroyed to listeners, which are removed afterwards.
// Calling Destroy again has no effect.
func (r *Runtime) Destroy() {
	if !r.destroyed.CompareAndSwap(false, true) {
		return
	}

	r.events.Emit(EventBeforeDestroy, r, events.EmitOptions{})

	r.sweeper.Stop()
	r.binder.Destroy()
	if r.writes != nil {
		r.writes.Off()
	}

	r.events.Emit(EventDestroyed, r, events.EmitOptions{Once: true})
	r.logger.Debug("runtime destroyed", "owner", r.owner.ID())
}

// IsDestroyed reports whether Destroy has been called.
func (r *Runtime) IsDestroyed() bool {
	return r.destroyed.Load()
}
