// Package binding pairs expression evaluations with the cells they read.
//
// A Binding evaluates its expression once to discover the cells it depends on,
// subscribes to each, and re-evaluates and calls its sink whenever one of them
// changes:
//
//	b := binder.Bind(binding.Options{
//	    Expression: "firstName + ' ' + lastName",
//	    Data:       data,
//	    Liveness:   node,
//	    Sink:       func(v any) { render(v) },
//	})
//
// Dependencies only grow. A cell read on one evaluation but not the next keeps
// its subscription until the binding is destroyed; a change to such a cell
// re-runs the evaluation without changing the result.
//
// Two-way bindings add a reverse channel: Input writes a consumer-side value
// back into the data through the sandbox's assign mode.
//
// Every subscription is handed to the liveness sweeper, so a binding dies with
// its consumer without an explicit Destroy.
package binding
