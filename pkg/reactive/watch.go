package reactive

import (
	"fmt"
	"sync/atomic"

	"github.com/vango-dev/reactor/internal/errors"
)

// Watch is a subscription to one cell. It fires on every distinct write until
// destroyed, either explicitly or by the liveness sweeper.
type Watch struct {
	id       uint64
	cell     atomic.Pointer[Cell]
	callback Callback
	liveness Liveness

	destroyed atomic.Bool
}

// ID returns the unique identifier for this watch.
func (w *Watch) ID() uint64 {
	return w.id
}

// Cell returns the cell this watch is attached to.
func (w *Watch) Cell() *Cell {
	return w.cell.Load()
}

// Liveness returns the liveness handle, nil when the watch is never collected.
func (w *Watch) Liveness() Liveness {
	return w.liveness
}

// Destroyed reports whether Destroy has been called.
func (w *Watch) Destroyed() bool {
	return w.destroyed.Load()
}

// Destroy removes the watch from its cell. It never fires afterwards.
func (w *Watch) Destroy() {
	if !w.destroyed.CompareAndSwap(false, true) {
		return
	}
	if c := w.cell.Load(); c != nil {
		c.unwatch(w)
	}
}

// fire invokes the callback, recovering panics so one consumer cannot break
// the notification of the others.
func (w *Watch) fire(newValue, oldValue any) {
	if w.destroyed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c := w.cell.Load()
			err := errors.New(errors.CodeCallbackPanic).Wrap(fmt.Errorf("%v", r))
			c.owner.logger.Error("watch callback panicked",
				"watch_id", w.id,
				"key", c.key,
				"error", err)
		}
	}()
	w.callback(newValue, oldValue)
}
