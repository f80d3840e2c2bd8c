package binding

import (
	"fmt"
	"reflect"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
)

// TwoWayOptions configures a two-way binding.
type TwoWayOptions struct {
	Options

	// Model is an expression producing the element value of an array binding.
	// The consumer reports membership: Input(true) adds the model value to the
	// array, Input(false) removes it, and the sink receives whether the array
	// currently holds it.
	Model string

	// Select marks a consumer choosing among options. An array-valued select
	// binding requires Multiple.
	Select bool

	// Multiple makes an array binding exchange whole selections: the sink
	// receives the items and Input replaces them.
	Multiple bool
}

type bindKind uint8

const (
	kindScalar bindKind = iota
	kindMembership
	kindMultiple
)

type twoWay struct {
	model    string
	selects  bool
	multiple bool

	// kind, array and modelValue reflect the last evaluation. They are
	// guarded by the owning binding's mu.
	kind       bindKind
	array      *reactive.Array
	modelValue any
}

// classify picks the binding kind for value, or reports why the configuration
// cannot bind it.
func (t *twoWay) classify(value any) (bindKind, error) {
	if _, ok := value.(*reactive.Array); !ok {
		return kindScalar, nil
	}
	if t.multiple {
		return kindMultiple, nil
	}
	if t.selects {
		return 0, errors.New(errors.CodeSelectNotMultiple)
	}
	if t.model == "" {
		return 0, errors.New(errors.CodeArrayWithoutModel)
	}
	return kindMembership, nil
}

// evaluateModel evaluates the model expression for membership bindings.
func (t *twoWay) evaluateModel(b *Binding, value any) (any, error) {
	if _, ok := value.(*reactive.Array); !ok || t.multiple || t.model == "" {
		return nil, nil
	}
	return b.binder.evaluator.Exec(b.execOptions(t.model, sandbox.ModeReturn, nil))
}

// display converts the bound value into what the sink receives.
func (t *twoWay) display(b *Binding, value, model any) (any, error) {
	kind, err := t.classify(value)
	if err != nil {
		if coded, ok := err.(*errors.Error); ok {
			return nil, coded.WithDetail(fmt.Sprintf("bound value is an array of %d items", value.(*reactive.Array).Len()))
		}
		return nil, err
	}
	array, _ := value.(*reactive.Array)

	b.mu.Lock()
	t.kind = kind
	t.array = array
	t.modelValue = model
	b.mu.Unlock()

	switch kind {
	case kindMembership:
		return array.Includes(model), nil
	case kindMultiple:
		return array.Items(), nil
	default:
		return value, nil
	}
}

func (t *twoWay) input(b *Binding, v any) error {
	b.mu.Lock()
	kind, array, model := t.kind, t.array, t.modelValue
	b.mu.Unlock()

	switch kind {
	case kindMembership:
		if truthy(v) {
			if !array.Includes(model) {
				array.Push(model)
			}
		} else {
			array.Remove(model)
		}
		return nil

	case kindMultiple:
		items, ok := toSlice(v)
		if !ok {
			return errors.New(errors.CodeInvalidInput).
				WithExpression(b.opts.Expression).
				WithDetail(fmt.Sprintf("multiple binding expects a slice, got %T", v))
		}
		array.Replace(items...)
		return nil

	default:
		_, err := b.binder.evaluator.Exec(b.execOptions(b.opts.Expression, sandbox.ModeAssign, []any{v}))
		return err
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	return true
}

func toSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
