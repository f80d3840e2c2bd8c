package reactive

import "sync"

// Cell is the interception unit for one property of an Object.
// It owns the current value and the ordered list of watches interested in it.
type Cell struct {
	id        uint64
	owner     *Owner
	container *Object
	key       string

	// mu protects value and mirrors.
	mu    sync.RWMutex
	value any

	// mirrors are other objects the cell was transferred into.
	mirrors []*Object

	// watchMu protects watches.
	watchMu sync.RWMutex
	watches []*Watch
}

func newCell(owner *Owner, container *Object, key string) *Cell {
	return &Cell{
		id:        nextID(),
		owner:     owner,
		container: container,
		key:       key,
	}
}

// ID returns the unique identifier for this cell.
func (c *Cell) ID() uint64 {
	return c.id
}

// Key returns the property name the cell backs.
func (c *Cell) Key() string {
	return c.key
}

// Container returns the object the cell belongs to.
func (c *Cell) Container() *Object {
	return c.container
}

// Owner returns the owner the cell was created under.
func (c *Cell) Owner() *Owner {
	return c.owner
}

// Get returns the current value. The read is recorded on the current collector
// and emitted on the owner's bus before returning.
func (c *Cell) Get() any {
	c.mu.RLock()
	value := c.value
	c.mu.RUnlock()

	recordRead(c)
	c.owner.bus.Emit(SignalRead, c)
	return value
}

// Peek returns the current value without recording or emitting anything.
func (c *Cell) Peek() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies watches with (v, previous). Containers are made
// reactive on the way in. Assigning a value identical to the current one does
// nothing.
func (c *Cell) Set(v any) {
	v = c.owner.wrap(v)

	c.mu.Lock()
	old := c.value
	if Identical(old, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.mu.Unlock()

	if arr, ok := old.(*Array); ok {
		arr.detach(c)
	}
	if arr, ok := v.(*Array); ok {
		arr.attach(c)
	}

	c.writeRaw(v)
	c.owner.bus.Emit(SignalWrite, c)
	c.notify(v, old)
}

// Notify re-announces the current value to every watch as (value, value).
// Used when the value was mutated in place, for example an Array.
func (c *Cell) Notify() {
	value := c.Peek()
	c.writeRaw(value)
	c.owner.bus.Emit(SignalWrite, c)
	c.notify(value, value)
}

// writeRaw mirrors v into the raw map of every object holding the cell.
func (c *Cell) writeRaw(v any) {
	c.mu.RLock()
	mirrors := make([]*Object, len(c.mirrors))
	copy(mirrors, c.mirrors)
	c.mu.RUnlock()

	c.container.writeRaw(c.key, v)
	for _, o := range mirrors {
		o.writeRaw(c.key, v)
	}
}

// mirror records that o now shares this cell.
func (c *Cell) mirror(o *Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.mirrors {
		if m == o {
			return
		}
	}
	c.mirrors = append(c.mirrors, o)
}

// init sets the value during transform without notifying anyone.
func (c *Cell) init(v any) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	if arr, ok := v.(*Array); ok {
		arr.attach(c)
	}
}

// Watch registers callback to run after every distinct write. A nil liveness
// makes the watch immune to sweeping.
func (c *Cell) Watch(callback Callback, liveness Liveness) *Watch {
	w := &Watch{
		id:       nextID(),
		callback: callback,
		liveness: liveness,
	}
	w.cell.Store(c)
	c.adopt(w)
	return w
}

// Watches returns a copy of the live watches in registration order.
func (c *Cell) Watches() []*Watch {
	c.watchMu.RLock()
	defer c.watchMu.RUnlock()
	out := make([]*Watch, len(c.watches))
	copy(out, c.watches)
	return out
}

// adopt appends w to the watch list unless it is already there.
func (c *Cell) adopt(w *Watch) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, existing := range c.watches {
		if existing == w {
			return
		}
	}
	c.watches = append(c.watches, w)
}

// unwatch removes w, preserving the order of the remaining watches.
func (c *Cell) unwatch(w *Watch) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for i, existing := range c.watches {
		if existing == w {
			c.watches = append(c.watches[:i:i], c.watches[i+1:]...)
			return
		}
	}
}

// notify fires every watch registered at the time of the write.
// The list is copied before calling out so callbacks may watch or unwatch.
// Callbacks run isolated from the writer's dependency collector.
func (c *Cell) notify(newValue, oldValue any) {
	watches := c.Watches()
	if len(watches) == 0 {
		return
	}
	isolate(func() {
		for _, w := range watches {
			w.fire(newValue, oldValue)
		}
	})
}
