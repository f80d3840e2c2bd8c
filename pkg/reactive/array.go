package reactive

import (
	"sort"
	"sync"
)

// Array wraps a sequence held by one or more cells. Mutations go through the
// wrapper and re-notify every holding cell, since changing an element does not
// pass through the cell's setter.
type Array struct {
	id    uint64
	owner *Owner

	mu    sync.RWMutex
	items []any

	cellsMu sync.Mutex
	cells   []*Cell
}

func newArray(owner *Owner, items []any) *Array {
	a := &Array{
		id:    nextID(),
		owner: owner,
		items: make([]any, len(items)),
	}
	for i, v := range items {
		a.items[i] = owner.wrap(v)
	}
	return a
}

// ID returns the unique identifier for this array.
func (a *Array) ID() uint64 {
	return a.id
}

// Len returns the number of elements.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// At returns the element at i, nil when out of range.
func (a *Array) At(i int) any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]any, len(a.items))
	copy(out, a.items)
	return out
}

// IndexOf returns the index of the first element identical to v, or -1.
func (a *Array) IndexOf(v any) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i, item := range a.items {
		if Identical(item, v) {
			return i
		}
	}
	return -1
}

// Includes reports whether an element identical to v is present.
func (a *Array) Includes(v any) bool {
	return a.IndexOf(v) >= 0
}

// SetAt replaces the element at i, growing the array with nils when i is past
// the end. Negative indexes are ignored.
func (a *Array) SetAt(i int, v any) {
	if i < 0 {
		return
	}
	v = a.owner.wrap(v)

	a.mu.Lock()
	if i < len(a.items) && Identical(a.items[i], v) {
		a.mu.Unlock()
		return
	}
	for len(a.items) <= i {
		a.items = append(a.items, nil)
	}
	a.items[i] = v
	a.mu.Unlock()

	a.changed()
}

// SetLen truncates or extends the array with nils.
func (a *Array) SetLen(n int) {
	if n < 0 {
		return
	}
	a.mu.Lock()
	if n == len(a.items) {
		a.mu.Unlock()
		return
	}
	if n < len(a.items) {
		a.items = a.items[:n:n]
	} else {
		a.items = append(a.items, make([]any, n-len(a.items))...)
	}
	a.mu.Unlock()

	a.changed()
}

// Push appends values and returns the new length.
func (a *Array) Push(values ...any) int {
	if len(values) == 0 {
		return a.Len()
	}
	a.mu.Lock()
	for _, v := range values {
		a.items = append(a.items, a.owner.wrap(v))
	}
	n := len(a.items)
	a.mu.Unlock()

	a.changed()
	return n
}

// Pop removes and returns the last element.
func (a *Array) Pop() any {
	a.mu.Lock()
	if len(a.items) == 0 {
		a.mu.Unlock()
		return nil
	}
	last := a.items[len(a.items)-1]
	a.items = a.items[: len(a.items)-1 : len(a.items)-1]
	a.mu.Unlock()

	a.changed()
	return last
}

// Shift removes and returns the first element.
func (a *Array) Shift() any {
	a.mu.Lock()
	if len(a.items) == 0 {
		a.mu.Unlock()
		return nil
	}
	first := a.items[0]
	a.items = append([]any(nil), a.items[1:]...)
	a.mu.Unlock()

	a.changed()
	return first
}

// Unshift prepends values and returns the new length.
func (a *Array) Unshift(values ...any) int {
	if len(values) == 0 {
		return a.Len()
	}
	wrapped := make([]any, len(values))
	for i, v := range values {
		wrapped[i] = a.owner.wrap(v)
	}

	a.mu.Lock()
	a.items = append(wrapped, a.items...)
	n := len(a.items)
	a.mu.Unlock()

	a.changed()
	return n
}

// Splice removes deleteCount elements starting at start, inserts values in
// their place and returns the removed elements. A negative start counts from
// the end; both arguments are clamped to the array bounds.
func (a *Array) Splice(start, deleteCount int, values ...any) []any {
	wrapped := make([]any, len(values))
	for i, v := range values {
		wrapped[i] = a.owner.wrap(v)
	}

	a.mu.Lock()
	n := len(a.items)
	start = relative(start, n)
	if deleteCount < 0 {
		deleteCount = 0
	}
	if deleteCount > n-start {
		deleteCount = n - start
	}

	removed := make([]any, deleteCount)
	copy(removed, a.items[start:start+deleteCount])

	next := make([]any, 0, n-deleteCount+len(wrapped))
	next = append(next, a.items[:start]...)
	next = append(next, wrapped...)
	next = append(next, a.items[start+deleteCount:]...)
	a.items = next
	a.mu.Unlock()

	if deleteCount > 0 || len(wrapped) > 0 {
		a.changed()
	}
	return removed
}

// Fill sets every element in [start, end) to v. Negative bounds count from
// the end and both are clamped to the array bounds.
func (a *Array) Fill(v any, start, end int) {
	v = a.owner.wrap(v)

	a.mu.Lock()
	n := len(a.items)
	start, end = relative(start, n), relative(end, n)
	if start >= end {
		a.mu.Unlock()
		return
	}
	for i := start; i < end; i++ {
		a.items[i] = v
	}
	a.mu.Unlock()

	a.changed()
}

// CopyWithin copies the elements in [start, end) over the elements starting at
// target, without changing the length. Bounds follow Fill.
func (a *Array) CopyWithin(target, start, end int) {
	a.mu.Lock()
	n := len(a.items)
	target, start, end = relative(target, n), relative(start, n), relative(end, n)
	count := min(end-start, n-target)
	if count <= 0 || target == start {
		a.mu.Unlock()
		return
	}
	copy(a.items[target:target+count], a.items[start:start+count])
	a.mu.Unlock()

	a.changed()
}

// relative resolves a possibly negative index against length n.
func relative(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}

// Remove deletes the first element identical to v and reports whether one was found.
func (a *Array) Remove(v any) bool {
	i := a.IndexOf(v)
	if i < 0 {
		return false
	}
	a.Splice(i, 1)
	return true
}

// Replace swaps the whole content for values.
func (a *Array) Replace(values ...any) {
	a.Splice(0, a.Len(), values...)
}

// Reverse reverses the elements in place.
func (a *Array) Reverse() {
	a.mu.Lock()
	for i, j := 0, len(a.items)-1; i < j; i, j = i+1, j-1 {
		a.items[i], a.items[j] = a.items[j], a.items[i]
	}
	a.mu.Unlock()

	a.changed()
}

// Sort orders the elements with less, keeping equal elements in place.
func (a *Array) Sort(less func(x, y any) bool) {
	a.mu.Lock()
	sort.SliceStable(a.items, func(i, j int) bool {
		return less(a.items[i], a.items[j])
	})
	a.mu.Unlock()

	a.changed()
}

// Raw returns the elements with reactive containers unwrapped one level.
func (a *Array) Raw() []any {
	items := a.Items()
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = rawValue(v)
	}
	return out
}

// Snapshot returns a deep plain copy of the elements.
func (a *Array) Snapshot() []any {
	return a.snapshot(make(map[any]bool))
}

func (a *Array) snapshot(visiting map[any]bool) []any {
	visiting[a] = true
	defer delete(visiting, a)

	items := a.Items()
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = snapshotValue(v, visiting)
	}
	return out
}

// Cells returns the cells currently holding the array.
func (a *Array) Cells() []*Cell {
	a.cellsMu.Lock()
	defer a.cellsMu.Unlock()
	out := make([]*Cell, len(a.cells))
	copy(out, a.cells)
	return out
}

func (a *Array) attach(c *Cell) {
	a.cellsMu.Lock()
	defer a.cellsMu.Unlock()
	for _, existing := range a.cells {
		if existing == c {
			return
		}
	}
	a.cells = append(a.cells, c)
}

func (a *Array) detach(c *Cell) {
	a.cellsMu.Lock()
	defer a.cellsMu.Unlock()
	for i, existing := range a.cells {
		if existing == c {
			a.cells = append(a.cells[:i:i], a.cells[i+1:]...)
			return
		}
	}
}

// changed notifies every holding cell after an in-place mutation.
func (a *Array) changed() {
	for _, c := range a.Cells() {
		c.Notify()
	}
}
