// Package errors provides the coded, structured errors reported by the reactor kernel.
//
// Errors raised by user expressions, scope composition and binding configuration never
// cross the kernel boundary as panics; they are turned into an *Error, logged, and the
// operation yields a neutral result. Callers that want the error itself use the
// error-returning variants (for example sandbox.Evaluator.Exec).
//
// # Categories
//
//   - evaluation: an expression failed to compile or threw while running
//   - scope: ambiguous names while composing an evaluation scope (warnings)
//   - binding: invalid binding configuration
//   - transform: a value that is not a container was handed to Transform
//   - config: configuration file or environment problems
//   - cli: command line errors
//
// # Usage
//
//	err := errors.New("R001").
//	    WithExpression("user.name.first").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// ERROR R001: Expression evaluation failed
//	//
//	//   > user.name.first
//	//
//	//   The expression threw or could not be compiled. The call yields undefined.
package errors
