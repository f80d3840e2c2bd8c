// Package sandbox evaluates expression text against a composed, throwaway scope.
//
// Expressions are JavaScript, run by the goja engine. Every evaluation builds a
// fresh scope record over four layers, highest precedence first:
//
//	extras   caller-supplied names, e.g. {event} for event handlers
//	$root    the root data object of the owning runtime
//	local    the data object the expression is bound to
//	global   process-global data
//
// A name present in both local and global data is reported as a warning and the
// local value wins. Reactive objects and arrays are exposed to the engine as
// live proxies, so reads inside an expression go through cells and are
// visible to reactive.Track.
//
//	ev := sandbox.New(sandbox.WithGlobal(global))
//	v := ev.Evaluate(sandbox.Options{
//	    Expression: "count * 2",
//	    Data:       data,
//	})
//
// Evaluate never fails: syntax errors, thrown exceptions and timeouts are logged
// and yield nil. Exec returns the coded error instead.
//
// # Modes
//
// ModeReturn evaluates an expression and returns its value. ModeRun executes a
// statement block. ModeAssign writes Args[0] to the expression, which must be a
// reference such as "user.name"; two-way bindings use it as their reverse channel.
//
// # Isolation
//
// Engine runtimes are pooled and never shared by two evaluations at once.
// Globals an expression creates are removed and reassigned ones restored before
// the runtime is reused. Built-in constructors, their prototypes and namespace
// objects such as Math and JSON are frozen, so patching them throws. One
// consequence: assigning a new property named like an Object.prototype member
// (toString, constructor) to a data object fails in the same way.
//
// Reactive arrays carry their own prototype. Its mutators (push, splice, sort
// and the rest) apply the whole change in one step, so the holding cell is
// notified once per call, not once per element.
//
// Run evaluates with only this and its own locals: the $root and global layers
// are left out.
package sandbox
