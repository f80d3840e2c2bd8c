package sandbox

import (
	"math"
	"sort"

	"github.com/dop251/goja"
)

// newArrayPrototype builds the prototype of proxied reactive arrays. Its
// mutators replace the generic Array.prototype ones, which write element by
// element and would notify the holding cells once per write. Each one here is
// a single reactive.Array call. Reads fall through to Array.prototype.
func newArrayPrototype(vm *goja.Runtime) *goja.Object {
	base := vm.Get("Array").ToObject(vm).Get("prototype").ToObject(vm)
	proto := vm.NewObject()
	_ = proto.SetPrototype(base)

	method := func(name string, fn func(p *arrayProxy, call goja.FunctionCall) goja.Value) {
		generic, _ := goja.AssertFunction(base.Get(name))
		_ = proto.Set(name, func(call goja.FunctionCall) goja.Value {
			p, ok := call.This.Export().(*arrayProxy)
			if !ok {
				res, err := generic(call.This, call.Arguments...)
				if err != nil {
					panic(err)
				}
				return res
			}
			return fn(p, call)
		})
	}

	method("push", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		return vm.ToValue(p.arr.Push(exportArgs(call.Arguments)...))
	})
	method("unshift", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		return vm.ToValue(p.arr.Unshift(exportArgs(call.Arguments)...))
	})
	method("pop", func(p *arrayProxy, _ goja.FunctionCall) goja.Value {
		if p.arr.Len() == 0 {
			return goja.Undefined()
		}
		return p.s.toJS(p.arr.Pop())
	})
	method("shift", func(p *arrayProxy, _ goja.FunctionCall) goja.Value {
		if p.arr.Len() == 0 {
			return goja.Undefined()
		}
		return p.s.toJS(p.arr.Shift())
	})
	method("splice", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		var removed []any
		switch len(call.Arguments) {
		case 0:
		case 1:
			removed = p.arr.Splice(intArg(call, 0, 0), math.MaxInt)
		default:
			removed = p.arr.Splice(intArg(call, 0, 0), intArg(call, 1, 0), exportArgs(call.Arguments[2:])...)
		}
		values := make([]any, len(removed))
		for i, v := range removed {
			values[i] = p.s.toJS(v)
		}
		return vm.NewArray(values...)
	})
	method("reverse", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		p.arr.Reverse()
		return call.This
	})
	method("fill", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		p.arr.Fill(fromJS(call.Argument(0)), intArg(call, 1, 0), intArg(call, 2, math.MaxInt))
		return call.This
	})
	method("copyWithin", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		p.arr.CopyWithin(intArg(call, 0, 0), intArg(call, 1, 0), intArg(call, 2, math.MaxInt))
		return call.This
	})
	method("sort", func(p *arrayProxy, call goja.FunctionCall) goja.Value {
		p.sort(call.Argument(0))
		return call.This
	})
	return proto
}

// sort orders a copy of the elements and swaps it in with one Replace, so the
// comparator runs without holding the array's lock.
func (p *arrayProxy) sort(comparator goja.Value) {
	var compare goja.Callable
	if !goja.IsUndefined(comparator) {
		fn, ok := goja.AssertFunction(comparator)
		if !ok {
			panic(p.s.vm.NewTypeError("The comparison function must be either a function or undefined"))
		}
		compare = fn
	}

	items := p.arr.Items()
	values := make([]goja.Value, len(items))
	for i, v := range items {
		values[i] = p.s.toJS(v)
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		x, y := values[order[i]], values[order[j]]
		if compare == nil {
			return x.String() < y.String()
		}
		res, err := compare(goja.Undefined(), x, y)
		if err != nil {
			panic(err)
		}
		return res.ToFloat() < 0
	})

	sorted := make([]any, len(order))
	for i, idx := range order {
		sorted[i] = items[idx]
	}
	p.arr.Replace(sorted...)
}

func exportArgs(args []goja.Value) []any {
	out := make([]any, len(args))
	for i, v := range args {
		out[i] = fromJS(v)
	}
	return out
}

// intArg converts argument i to an integer index, def when it is missing or
// undefined. Infinities saturate and NaN becomes zero.
func intArg(call goja.FunctionCall, i, def int) int {
	v := call.Argument(i)
	if goja.IsUndefined(v) {
		return def
	}
	f := v.ToFloat()
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}
