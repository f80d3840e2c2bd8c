package reactive

import (
	"sort"
	"sync"
)

// Object is a reactive container: every property is backed by a Cell.
// Writes go through to the raw map the object was built from, so holders of
// that map keep observing current values.
type Object struct {
	id    uint64
	owner *Owner

	mu    sync.RWMutex
	raw   map[string]any
	keys  []string
	cells map[string]*Cell
}

func newObject(owner *Owner, raw map[string]any) *Object {
	return &Object{
		id:    nextID(),
		owner: owner,
		raw:   raw,
		cells: make(map[string]*Cell, len(raw)),
	}
}

// populate creates a cell for every key of the raw map, in sorted key order.
func (o *Object) populate() {
	o.mu.RLock()
	keys := make([]string, 0, len(o.raw))
	for k := range o.raw {
		keys = append(keys, k)
	}
	o.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		o.mu.RLock()
		v := o.raw[k]
		o.mu.RUnlock()

		cell := newCell(o.owner, o, k)
		cell.init(o.owner.wrap(v))

		o.mu.Lock()
		o.cells[k] = cell
		o.keys = append(o.keys, k)
		o.mu.Unlock()
	}
}

// ID returns the unique identifier for this object.
func (o *Object) ID() uint64 {
	return o.id
}

// Owner returns the owner the object was transformed under.
func (o *Object) Owner() *Owner {
	return o.owner
}

// Raw returns the underlying plain map.
func (o *Object) Raw() map[string]any {
	return o.raw
}

// Cell returns the cell backing key.
func (o *Object) Cell(key string) (*Cell, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.cells[key]
	return c, ok
}

// Has reports whether key is a property of the object.
func (o *Object) Has(key string) bool {
	_, ok := o.Cell(key)
	return ok
}

// Keys returns the property names in definition order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of properties.
func (o *Object) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.keys)
}

// Get reads key through its cell. Missing keys read as nil and are not tracked.
func (o *Object) Get(key string) any {
	c, ok := o.Cell(key)
	if !ok {
		return nil
	}
	return c.Get()
}

// Peek reads key without tracking.
func (o *Object) Peek(key string) any {
	c, ok := o.Cell(key)
	if !ok {
		return nil
	}
	return c.Peek()
}

// Set writes key through its cell. Assigning a new key creates its cell on the fly.
func (o *Object) Set(key string, v any) {
	o.mu.Lock()
	c, ok := o.cells[key]
	if ok {
		o.mu.Unlock()
		c.Set(v)
		return
	}
	c = newCell(o.owner, o, key)
	o.cells[key] = c
	o.keys = append(o.keys, key)
	o.mu.Unlock()

	c.init(o.owner.wrap(v))
	o.writeRaw(key, c.Peek())
	o.owner.bus.Emit(SignalWrite, c)
}

// Delete removes key and its cell. Watches on the removed cell stay attached
// to it but will not fire again unless someone still holds the cell.
func (o *Object) Delete(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.cells[key]; !ok {
		return false
	}
	delete(o.cells, key)
	delete(o.raw, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Transfer makes from's cell for key the cell of o as well. Watches of the cell
// it replaces move onto the transferred cell, which then notifies them all.
// Reports false when from has no such key.
func (o *Object) Transfer(key string, from *Object) bool {
	src, ok := from.Cell(key)
	if !ok {
		return false
	}

	o.mu.Lock()
	dst := o.cells[key]
	o.cells[key] = src
	if dst == nil {
		o.keys = append(o.keys, key)
	}
	o.mu.Unlock()

	if o != src.container {
		src.mirror(o)
	}
	if dst != nil && dst != src {
		for _, w := range dst.Watches() {
			dst.unwatch(w)
			w.cell.Store(src)
			src.adopt(w)
		}
	}

	src.Notify()
	return true
}

// Snapshot returns a deep plain copy of the object without tracking reads.
func (o *Object) Snapshot() map[string]any {
	return o.snapshot(make(map[any]bool))
}

func (o *Object) snapshot(visiting map[any]bool) map[string]any {
	visiting[o] = true
	defer delete(visiting, o)

	keys := o.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = snapshotValue(o.Peek(k), visiting)
	}
	return out
}

// Plain returns v with every reactive container replaced by a deep plain copy.
// Reads are not tracked.
func Plain(v any) any {
	return snapshotValue(v, make(map[any]bool))
}

func snapshotValue(v any, visiting map[any]bool) any {
	switch x := v.(type) {
	case *Object:
		if visiting[x] {
			return nil
		}
		return x.snapshot(visiting)
	case *Array:
		if visiting[x] {
			return nil
		}
		return x.snapshot(visiting)
	default:
		return v
	}
}

// writeRaw mirrors a cell write into the raw map.
func (o *Object) writeRaw(key string, v any) {
	o.mu.Lock()
	o.raw[key] = rawValue(v)
	o.mu.Unlock()
}

// rawValue unwraps reactive containers to their plain representation.
func rawValue(v any) any {
	switch x := v.(type) {
	case *Object:
		return x.raw
	case *Array:
		return x.Raw()
	default:
		return v
	}
}
