package sandbox

import (
	"fmt"
	"strings"

	"github.com/vango-dev/reactor/internal/errors"
)

// Mode selects how the expression text is wrapped.
type Mode uint8

const (
	// ModeReturn evaluates an expression and returns its value.
	ModeReturn Mode = iota

	// ModeRun executes a statement block. Its value is whatever the block returns.
	ModeRun

	// ModeAssign assigns the first argument to the expression.
	ModeAssign
)

// String returns the mode name used in logs and metrics.
func (m Mode) String() string {
	switch m {
	case ModeReturn:
		return "return"
	case ModeRun:
		return "run"
	case ModeAssign:
		return "assign"
	default:
		return "unknown"
	}
}

// ParseMode returns the mode named s. An empty name is ModeReturn.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "return":
		return ModeReturn, nil
	case "run":
		return ModeRun, nil
	case "assign":
		return ModeAssign, nil
	default:
		return ModeReturn, errors.New(errors.CodeInvalidInput).
			WithDetail(fmt.Sprintf("unknown mode %q", s)).
			WithSuggestion("Use return, run or assign")
	}
}

// body returns the function body for expr.
func (m Mode) body(expr string) string {
	if m == ModeRun {
		return expr
	}
	expr = strings.TrimRight(strings.TrimSpace(expr), ";")
	if expr == "" {
		return "return undefined;"
	}
	if m == ModeAssign {
		return expr + " = arguments[0];"
	}
	return "return (" + expr + "\n);"
}
