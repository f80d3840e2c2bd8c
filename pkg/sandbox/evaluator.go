package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

// Options describes one evaluation.
type Options struct {
	// Expression is the source text.
	Expression string

	// Data is the local data object the expression is bound to.
	Data *reactive.Object

	// Extras are names with the highest precedence, e.g. "event".
	// The map is copied; assignments inside the expression do not reach it.
	Extras map[string]any

	// Args are passed as positional arguments (arguments[0], ...).
	Args []any

	// Context is the this value. Nil uses the evaluator's default context.
	Context any

	// Mode selects return, run or assign wrapping.
	Mode Mode

	// Invoke calls a function-valued result with the same this and Args.
	Invoke bool

	// Isolated leaves $root and the global layer out of the scope.
	Isolated bool

	// Ctx cancels a running evaluation. Nil means no cancellation.
	Ctx context.Context
}

// Evaluator evaluates expressions in isolated engine runtimes.
// It is safe for concurrent use.
type Evaluator struct {
	global  *reactive.Object
	root    *reactive.Object
	context any
	logger  *slog.Logger
	timeout time.Duration
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	cacheSize int
	programs  *programCache
	engines   sync.Pool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithGlobal sets the process-global data layer of the scope.
func WithGlobal(global *reactive.Object) Option {
	return func(e *Evaluator) {
		e.global = global
	}
}

// WithRoot exposes root as $root.
func WithRoot(root *reactive.Object) Option {
	return func(e *Evaluator) {
		e.root = root
	}
}

// WithContext sets the default this value.
func WithContext(this any) Option {
	return func(e *Evaluator) {
		e.context = this
	}
}

// WithLogger sets the logger for evaluation errors and scope warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout interrupts evaluations running longer than d. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		e.timeout = d
	}
}

// WithCacheSize sets how many compiled programs are kept. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		e.cacheSize = n
	}
}

// WithMetrics records evaluations on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithTracer records a span per evaluation on t.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Evaluator) {
		e.tracer = t
	}
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger:    slog.Default(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "sandbox")
	e.programs = newProgramCache(e.cacheSize)
	e.engines.New = func() any {
		return e.newEngine()
	}
	return e
}

// Global returns the global data layer.
func (e *Evaluator) Global() *reactive.Object {
	return e.global
}

// Root returns the object exposed as $root.
func (e *Evaluator) Root() *reactive.Object {
	return e.root
}

// CachedPrograms returns the number of compiled programs in the cache.
func (e *Evaluator) CachedPrograms() int {
	return e.programs.Len()
}

// Evaluate runs the expression and returns its value. Errors are logged and
// yield nil; nothing raised by the expression reaches the caller.
func (e *Evaluator) Evaluate(opts Options) any {
	v, err := e.Exec(opts)
	if err != nil {
		e.logger.Error("expression evaluation failed",
			"code", errors.CodeEvaluation,
			"mode", opts.Mode.String(),
			"expression", opts.Expression,
			"error", err)
		return nil
	}
	return v
}

// Run executes a statement block without scope data, bound to this.
func (e *Evaluator) Run(statements string, this any) any {
	return e.Evaluate(Options{
		Expression: statements,
		Mode:       ModeRun,
		Context:    this,
		Isolated:   true,
	})
}

// Exec runs the expression and returns its value or a coded error.
// Function values in the result are only callable until the next evaluation
// reuses the runtime they were created in.
func (e *Evaluator) Exec(opts Options) (result any, err error) {
	start := time.Now()
	ctx := opts.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	mode := opts.Mode.String()

	_, span := e.tracer.StartEvaluation(ctx, mode, opts.Expression)
	defer func() {
		e.metrics.ObserveEvaluation(mode, time.Since(start), err)
		telemetry.End(span, err)
	}()

	prog, err := e.programs.compile(opts.Mode, opts.Expression)
	if err != nil {
		return nil, evaluationError(opts.Expression, err)
	}

	eng := e.engines.Get().(*engine)
	defer e.release(eng)

	stop := e.watchdog(ctx, eng.vm)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			eng.broken = true
			result = nil
			err = errors.New(errors.CodeEvaluation).
				WithExpression(opts.Expression).
				Wrap(fmt.Errorf("panic: %v", r))
		}
	}()

	s := newSession(eng)
	root, global := e.root, e.global
	if opts.Isolated {
		root, global = nil, nil
	}
	sc := newScope(s, &opts, root, global, e.logger, e.metrics)

	value, err := e.call(s, prog, sc, &opts)
	if err != nil {
		return nil, evaluationError(opts.Expression, err)
	}
	return value, nil
}

// call runs the wrapper: the outer function captures the scope, the inner one
// holds the body and is invoked with this and the positional arguments.
func (e *Evaluator) call(s *session, prog *goja.Program, sc *scope, opts *Options) (any, error) {
	wrapper, err := s.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	outer, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("wrapper is not a function")
	}
	scopeObject := s.vm.NewDynamicObject(sc)
	// Without a prototype, Object.prototype members do not shadow globals.
	if err := scopeObject.SetPrototype(nil); err != nil {
		return nil, err
	}
	innerValue, err := outer(goja.Undefined(), scopeObject)
	if err != nil {
		return nil, err
	}
	inner, ok := goja.AssertFunction(innerValue)
	if !ok {
		return nil, fmt.Errorf("wrapper did not return a function")
	}

	this := goja.Undefined()
	thisArg := opts.Context
	if thisArg == nil {
		thisArg = e.context
	}
	if thisArg != nil {
		this = s.toJS(thisArg)
	}
	args := make([]goja.Value, len(opts.Args))
	for i, a := range opts.Args {
		args[i] = s.toJS(a)
	}

	res, err := inner(this, args...)
	if err != nil {
		return nil, err
	}
	if opts.Invoke {
		if fn, ok := goja.AssertFunction(res); ok {
			res, err = fn(this, args...)
			if err != nil {
				return nil, err
			}
		}
	}
	return fromJS(res), nil
}

// watchdog interrupts vm when the timeout elapses or ctx is cancelled.
// The returned stop function must run before vm is reused.
func (e *Evaluator) watchdog(ctx context.Context, vm *goja.Runtime) func() {
	if e.timeout <= 0 && ctx.Done() == nil {
		return func() {}
	}

	var mu sync.Mutex
	finished := false
	done := make(chan struct{})

	go func() {
		var expired <-chan time.Time
		if e.timeout > 0 {
			timer := time.NewTimer(e.timeout)
			defer timer.Stop()
			expired = timer.C
		}

		var reason error
		select {
		case <-done:
			return
		case <-expired:
			reason = errors.New(errors.CodeInterrupted).
				WithDetail(fmt.Sprintf("evaluation exceeded %s", e.timeout))
		case <-ctx.Done():
			reason = errors.New(errors.CodeInterrupted).Wrap(ctx.Err())
		}

		mu.Lock()
		defer mu.Unlock()
		if !finished {
			vm.Interrupt(reason)
		}
	}()

	return func() {
		mu.Lock()
		finished = true
		mu.Unlock()
		close(done)
		vm.ClearInterrupt()
	}
}

// evaluationError converts an engine error into a coded error.
func evaluationError(expr string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if coded, ok := interrupted.Value().(*errors.Error); ok {
			return coded.WithExpression(expr)
		}
		return errors.New(errors.CodeInterrupted).WithExpression(expr).Wrap(err)
	}
	return errors.New(errors.CodeEvaluation).WithExpression(expr).Wrap(err)
}
