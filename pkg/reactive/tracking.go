package reactive

import (
	"runtime"
	"sync"
)

// trackingContext holds the dependency collectors of one goroutine.
type trackingContext struct {
	// collectors is a stack; reads are recorded on the top entry only.
	// A nil entry discards reads until something is pushed above it.
	collectors []*collector
}

// collector accumulates the cells read during one Track call, in read order.
type collector struct {
	seen  map[*Cell]struct{}
	cells []*Cell
}

func (c *collector) add(cell *Cell) {
	if _, ok := c.seen[cell]; ok {
		return
	}
	c.seen[cell] = struct{}{}
	c.cells = append(c.cells, cell)
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// The runtime stack starts with "goroutine <id> ".
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating it on first use.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()
	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}
	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// releaseTrackingContext drops the context once its stack is empty so finished
// goroutines do not leak entries.
func releaseTrackingContext(ctx *trackingContext) {
	if len(ctx.collectors) == 0 {
		trackingContexts.Delete(getGoroutineID())
	}
}

// recordRead reports a cell read to the innermost collector of this goroutine.
func recordRead(c *Cell) {
	v, ok := trackingContexts.Load(getGoroutineID())
	if !ok {
		return
	}
	ctx := v.(*trackingContext)
	if len(ctx.collectors) == 0 {
		return
	}
	if top := ctx.collectors[len(ctx.collectors)-1]; top != nil {
		top.add(c)
	}
}

// Track runs fn and returns the cells read while it ran, in first-read order.
// Calls nest: an inner Track collects its own reads and hides them from the
// outer one. Watch callbacks run hidden from every active collector, so
// whatever a callback reads, tracked or not, never becomes a dependency of the
// evaluation whose write fired it.
func Track(fn func()) []*Cell {
	ctx := getTrackingContext()
	col := &collector{seen: make(map[*Cell]struct{})}
	ctx.collectors = append(ctx.collectors, col)

	defer func() {
		ctx.collectors = ctx.collectors[:len(ctx.collectors)-1]
		releaseTrackingContext(ctx)
	}()

	fn()
	return col.cells
}

// Untracked runs fn without recording any reads on the current collector.
// A Track call inside fn still collects its own reads.
func Untracked(fn func()) {
	ctx := getTrackingContext()
	hide(ctx, fn)
}

// isolate runs fn hidden from any collector active on this goroutine. Watch
// callbacks run this way, so what they read is not charged to the evaluation
// whose write triggered them.
func isolate(fn func()) {
	v, ok := trackingContexts.Load(getGoroutineID())
	if !ok {
		fn()
		return
	}
	hide(v.(*trackingContext), fn)
}

func hide(ctx *trackingContext, fn func()) {
	ctx.collectors = append(ctx.collectors, nil)
	defer func() {
		ctx.collectors = ctx.collectors[:len(ctx.collectors)-1]
		releaseTrackingContext(ctx)
	}()
	fn()
}

// Tracking reports whether a collector is active on the current goroutine.
func Tracking() bool {
	v, ok := trackingContexts.Load(getGoroutineID())
	if !ok {
		return false
	}
	ctx := v.(*trackingContext)
	return len(ctx.collectors) > 0 && ctx.collectors[len(ctx.collectors)-1] != nil
}
