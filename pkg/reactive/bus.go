package reactive

import (
	"sync"
	"sync/atomic"
)

// SignalKind identifies an access signal.
type SignalKind uint8

const (
	// SignalRead is emitted after a cell value is read.
	SignalRead SignalKind = iota + 1

	// SignalWrite is emitted after a cell value is replaced or mutated.
	SignalWrite
)

// String returns a human-readable name for the signal kind.
func (k SignalKind) String() string {
	switch k {
	case SignalRead:
		return "read"
	case SignalWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Handler receives the cell an access signal refers to.
type Handler func(cell *Cell)

// Handle is a registration on the Bus.
type Handle struct {
	id      uint64
	bus     *Bus
	kind    SignalKind
	handler Handler
	once    bool
	off     atomic.Bool
}

// Off deregisters the handler. Safe to call more than once.
func (h *Handle) Off() {
	if h == nil || !h.off.CompareAndSwap(false, true) {
		return
	}
	h.bus.remove(h)
}

// Active reports whether the handler is still registered.
func (h *Handle) Active() bool {
	return h != nil && !h.off.Load()
}

// Bus is the same-stack-frame publish/subscribe channel for access signals.
// It holds no signal between calls: Emit dispatches synchronously to the
// handlers registered at that moment, in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[SignalKind][]*Handle
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[SignalKind][]*Handle)}
}

// On registers h for every signal of kind until Off is called.
func (b *Bus) On(kind SignalKind, h Handler) *Handle {
	return b.add(kind, h, false)
}

// Once registers h for the next signal of kind only.
func (b *Bus) Once(kind SignalKind, h Handler) *Handle {
	return b.add(kind, h, true)
}

// Capture registers a handler for kind, runs fn, deregisters it, and returns the
// cells signalled while fn ran (deduplicated, in signal order).
func (b *Bus) Capture(kind SignalKind, fn func()) []*Cell {
	seen := make(map[*Cell]struct{})
	var cells []*Cell
	h := b.On(kind, func(c *Cell) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		cells = append(cells, c)
	})
	defer h.Off()
	fn()
	return cells
}

// Emit dispatches a signal to all handlers currently registered for kind.
func (b *Bus) Emit(kind SignalKind, cell *Cell) {
	b.mu.RLock()
	list := b.handlers[kind]
	if len(list) == 0 {
		b.mu.RUnlock()
		return
	}
	handlers := make([]*Handle, len(list))
	copy(handlers, list)
	b.mu.RUnlock()

	for _, h := range handlers {
		if h.once {
			if !h.off.CompareAndSwap(false, true) {
				continue
			}
			b.remove(h)
		} else if h.off.Load() {
			continue
		}
		h.handler(cell)
	}
}

// Len returns the number of handlers registered for kind.
func (b *Bus) Len(kind SignalKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

func (b *Bus) add(kind SignalKind, h Handler, once bool) *Handle {
	handle := &Handle{
		id:      nextID(),
		bus:     b,
		kind:    kind,
		handler: h,
		once:    once,
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], handle)
	b.mu.Unlock()
	return handle
}

func (b *Bus) remove(h *Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[h.kind]
	for i, existing := range list {
		if existing == h {
			b.handlers[h.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}
