package binding

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// Group re-runs a function whenever a cell it read changes. The watches of a
// group are destroyed together.
type Group struct {
	id       uint64
	binder   *Binder
	fn       func()
	liveness reactive.Liveness

	mu      sync.Mutex
	seen    map[*reactive.Cell]struct{}
	watches []*reactive.Watch

	running   atomic.Bool
	destroyed atomic.Bool
}

// ID returns the unique identifier for this group.
func (g *Group) ID() uint64 {
	return g.id
}

// Watches returns the subscriptions of the group.
func (g *Group) Watches() []*reactive.Watch {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*reactive.Watch, len(g.watches))
	copy(out, g.watches)
	return out
}

// Liveness returns the handle shared by the group's watches, nil once the
// group is destroyed.
func (g *Group) Liveness() reactive.Liveness {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.liveness
}

// Destroyed reports whether the group is destroyed.
func (g *Group) Destroyed() bool {
	return g.destroyed.Load()
}

// Destroy destroys every watch of the group and drops its liveness handle.
func (g *Group) Destroy() {
	g.mu.Lock()
	if !g.destroyed.CompareAndSwap(false, true) {
		g.mu.Unlock()
		return
	}
	g.liveness = nil
	g.mu.Unlock()
	for _, w := range g.Watches() {
		w.Destroy()
	}
}

// run executes fn, subscribing to every newly read cell. Changes caused by fn
// itself do not re-enter it.
func (g *Group) run() {
	if g.destroyed.Load() || !g.running.CompareAndSwap(false, true) {
		return
	}
	defer g.running.Store(false)

	deps := reactive.Track(func() {
		defer func() {
			if r := recover(); r != nil {
				g.binder.logger.Error("reaction panicked",
					"code", errors.CodeCallbackPanic,
					"group_id", g.id,
					"error", fmt.Sprint(r))
			}
		}()
		g.fn()
	})

	var fresh []*reactive.Watch
	g.mu.Lock()
	if g.destroyed.Load() {
		g.mu.Unlock()
		return
	}
	for _, cell := range deps {
		if _, ok := g.seen[cell]; ok {
			continue
		}
		g.seen[cell] = struct{}{}
		w := cell.Watch(func(_, _ any) { g.run() }, g.liveness)
		g.watches = append(g.watches, w)
		fresh = append(fresh, w)
	}
	g.mu.Unlock()

	for _, w := range fresh {
		g.binder.track(w)
	}
}
