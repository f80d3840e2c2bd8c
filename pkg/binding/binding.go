package binding

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
)

// maxSettle bounds how often a binding re-runs when its own sink keeps
// changing its dependencies.
const maxSettle = 16

// State is the lifecycle state of a binding.
type State uint8

const (
	StateUnbound State = iota
	StateBound
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Options configures a one-way binding.
type Options struct {
	// Expression is evaluated in return mode.
	Expression string

	// Data is the local data layer.
	Data *reactive.Object

	// Extras are evaluated with the highest precedence.
	Extras map[string]any

	// Context is the this value of the evaluation.
	Context any

	// Liveness is shared by every subscription of the binding. Nil keeps the
	// binding alive until destroyed explicitly.
	Liveness reactive.Liveness

	// Sink receives the value after every evaluation.
	Sink func(value any)
}

// Binding is one expression bound to the cells it reads.
type Binding struct {
	id     uint64
	binder *Binder
	opts   Options
	two    *twoWay

	// inputMu serializes Input so membership checks and writes do not interleave.
	inputMu sync.Mutex

	mu      sync.Mutex
	state   State
	value   any
	deps    []*reactive.Cell
	seen    map[*reactive.Cell]struct{}
	watches []*reactive.Watch
	err     error

	refreshing atomic.Bool
	pending    atomic.Bool
}

func newBinding(binder *Binder, opts Options, two *twoWay) *Binding {
	return &Binding{
		id:     nextID(),
		binder: binder,
		opts:   opts,
		two:    two,
		seen:   make(map[*reactive.Cell]struct{}),
	}
}

// ID returns the unique identifier for this binding.
func (b *Binding) ID() uint64 {
	return b.id
}

// Expression returns the bound expression.
func (b *Binding) Expression() string {
	return b.opts.Expression
}

// TwoWay reports whether the binding has a reverse channel.
func (b *Binding) TwoWay() bool {
	return b.two != nil
}

// State returns the lifecycle state.
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Value returns the result of the last evaluation.
func (b *Binding) Value() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Dependencies returns every cell the binding is subscribed to, in discovery order.
func (b *Binding) Dependencies() []*reactive.Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*reactive.Cell, len(b.deps))
	copy(out, b.deps)
	return out
}

// Watches returns the subscriptions the binding created.
func (b *Binding) Watches() []*reactive.Watch {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*reactive.Watch, len(b.watches))
	copy(out, b.watches)
	return out
}

// Liveness returns the liveness handle shared by the binding's subscriptions,
// nil once the binding is destroyed.
func (b *Binding) Liveness() reactive.Liveness {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts.Liveness
}

// Err returns the error of the last evaluation, or the configuration error
// that made the binding inert.
func (b *Binding) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Destroyed reports whether the binding is destroyed.
func (b *Binding) Destroyed() bool {
	return b.State() == StateDestroyed
}

// Refresh re-evaluates the expression, subscribes to newly read cells and calls
// the sink. A Refresh triggered while one is running is folded into a re-run
// once the running one finishes.
func (b *Binding) Refresh() {
	if b.Destroyed() {
		return
	}
	if !b.refreshing.CompareAndSwap(false, true) {
		b.pending.Store(true)
		return
	}
	defer b.refreshing.Store(false)

	for i := 0; i < maxSettle; i++ {
		b.pending.Store(false)
		b.evaluate()
		if !b.pending.Load() || b.Destroyed() {
			return
		}
	}
	b.binder.logger.Warn("binding did not settle",
		"binding_id", b.id,
		"expression", b.opts.Expression,
		"runs", maxSettle)
}

func (b *Binding) evaluate() {
	var (
		value any
		model any
		err   error
	)
	deps := reactive.Track(func() {
		value, err = b.binder.evaluator.Exec(b.execOptions(b.opts.Expression, sandbox.ModeReturn, nil))
		if err == nil && b.two != nil {
			model, err = b.two.evaluateModel(b, value)
		}
	})
	b.subscribe(deps)

	if err != nil {
		b.binder.logger.Error("binding evaluation failed",
			"code", errors.CodeEvaluation,
			"binding_id", b.id,
			"expression", b.opts.Expression,
			"error", err)
		value = nil
	}

	out := value
	if b.two != nil && err == nil {
		var cfgErr error
		out, cfgErr = b.two.display(b, value, model)
		if cfgErr != nil {
			b.fail(cfgErr)
			return
		}
	}

	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		return
	}
	wasUnbound := b.state == StateUnbound
	b.state = StateBound
	b.value = value
	b.err = err
	b.mu.Unlock()

	if wasUnbound {
		b.binder.metrics.AddBindings(1)
	}
	b.apply(out)
}

// subscribe watches every cell not already watched. Cells are never
// unsubscribed before Destroy.
func (b *Binding) subscribe(deps []*reactive.Cell) {
	var fresh []*reactive.Watch

	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		return
	}
	for _, cell := range deps {
		if _, ok := b.seen[cell]; ok {
			continue
		}
		b.seen[cell] = struct{}{}
		b.deps = append(b.deps, cell)
		w := cell.Watch(func(_, _ any) { b.Refresh() }, b.opts.Liveness)
		b.watches = append(b.watches, w)
		fresh = append(fresh, w)
	}
	b.mu.Unlock()

	for _, w := range fresh {
		b.binder.track(w)
	}
}

func (b *Binding) apply(value any) {
	if b.opts.Sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.binder.logger.Error("binding sink panicked",
				"code", errors.CodeCallbackPanic,
				"binding_id", b.id,
				"expression", b.opts.Expression,
				"error", fmt.Sprint(r))
		}
	}()
	b.opts.Sink(value)
}

// fail logs a configuration error and leaves the binding inert.
func (b *Binding) fail(err error) {
	b.binder.logger.Error("invalid binding configuration",
		"binding_id", b.id,
		"expression", b.opts.Expression,
		"error", err)
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.Destroy()
}

// Input writes a consumer-side value back into the data. Only two-way
// bindings accept input.
func (b *Binding) Input(v any) error {
	if b.Destroyed() {
		return errors.New(errors.CodeDestroyed).WithExpression(b.opts.Expression)
	}
	if b.two == nil {
		return errors.New(errors.CodeInvalidInput).
			WithExpression(b.opts.Expression).
			WithDetail("binding is one-way")
	}
	b.inputMu.Lock()
	defer b.inputMu.Unlock()
	return b.two.input(b, v)
}

// Destroy removes every subscription of the binding and drops its liveness
// handle. Safe to call more than once.
func (b *Binding) Destroy() {
	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		return
	}
	wasBound := b.state == StateBound
	b.state = StateDestroyed
	b.opts.Liveness = nil
	watches := b.watches
	b.mu.Unlock()

	for _, w := range watches {
		w.Destroy()
	}
	if wasBound {
		b.binder.metrics.AddBindings(-1)
	}
}

func (b *Binding) execOptions(expr string, mode sandbox.Mode, args []any) sandbox.Options {
	return sandbox.Options{
		Expression: expr,
		Data:       b.opts.Data,
		Extras:     b.opts.Extras,
		Context:    b.opts.Context,
		Mode:       mode,
		Args:       args,
	}
}
