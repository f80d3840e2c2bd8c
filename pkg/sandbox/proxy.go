package sandbox

import (
	"github.com/dop251/goja"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// session is the state of one evaluation: the engine runtime it borrowed and
// the proxies created for reactive containers, so the same container always
// maps to the same engine object within the evaluation.
type session struct {
	vm      *goja.Runtime
	arrays  *goja.Object
	proxies map[any]*goja.Object
}

func newSession(eng *engine) *session {
	return &session{vm: eng.vm, arrays: eng.arrays, proxies: make(map[any]*goja.Object)}
}

// toJS converts a Go value for the engine. Reactive containers become live
// proxies; everything else goes through the engine's own conversion.
func (s *session) toJS(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return x
	case *reactive.Object:
		if p, ok := s.proxies[x]; ok {
			return p
		}
		p := s.vm.NewDynamicObject(&objectProxy{s: s, obj: x})
		s.proxies[x] = p
		return p
	case *reactive.Array:
		if p, ok := s.proxies[x]; ok {
			return p
		}
		p := s.vm.NewDynamicArray(&arrayProxy{s: s, arr: x})
		if s.arrays != nil {
			_ = p.SetPrototype(s.arrays)
		}
		s.proxies[x] = p
		return p
	}
	return s.vm.ToValue(v)
}

// fromJS converts an engine value back to Go. Proxies unwrap to the reactive
// container they stand for, including proxies nested in plain objects.
func fromJS(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return unwrap(v.Export())
}

func unwrap(v any) any {
	switch x := v.(type) {
	case *objectProxy:
		return x.obj
	case *arrayProxy:
		return x.arr
	case map[string]any:
		for k, item := range x {
			x[k] = unwrap(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = unwrap(item)
		}
		return x
	}
	return v
}

// objectProxy exposes a reactive object to the engine. Property reads and
// writes go through the object's cells.
type objectProxy struct {
	s   *session
	obj *reactive.Object
}

func (p *objectProxy) Get(key string) goja.Value {
	if !p.obj.Has(key) {
		return nil
	}
	return p.s.toJS(p.obj.Get(key))
}

func (p *objectProxy) Set(key string, val goja.Value) bool {
	p.obj.Set(key, fromJS(val))
	return true
}

func (p *objectProxy) Has(key string) bool {
	return p.obj.Has(key)
}

func (p *objectProxy) Delete(key string) bool {
	p.obj.Delete(key)
	return true
}

func (p *objectProxy) Keys() []string {
	return p.obj.Keys()
}

// arrayProxy exposes a reactive array to the engine. Index and length writes
// go through it; the mutating methods come from the prototype built by
// newArrayPrototype.
type arrayProxy struct {
	s   *session
	arr *reactive.Array
}

func (p *arrayProxy) Len() int {
	return p.arr.Len()
}

func (p *arrayProxy) Get(idx int) goja.Value {
	if idx < 0 || idx >= p.arr.Len() {
		return nil
	}
	return p.s.toJS(p.arr.At(idx))
}

func (p *arrayProxy) Set(idx int, val goja.Value) bool {
	if idx < 0 {
		return false
	}
	p.arr.SetAt(idx, fromJS(val))
	return true
}

func (p *arrayProxy) SetLen(n int) bool {
	if n < 0 {
		return false
	}
	p.arr.SetLen(n)
	return true
}
