// Package reactive provides the dependency-tracking core of the reactor kernel.
//
// A plain data object is turned into a tracked Object by Transform. Every property
// of a tracked Object is backed by a Cell; reading a Cell reports it to the
// current dependency collector and to the owner's Access Signal Bus, writing it
// notifies every live Watch synchronously.
//
// # Core Types
//
// Object is a reactive container, Cell is one of its properties:
//
//	owner := reactive.NewOwner()
//	data := owner.Object(map[string]any{"count": 0})
//
//	cell, _ := data.Cell("count")
//	w := cell.Watch(func(newValue, oldValue any) {
//	    fmt.Println(oldValue, "->", newValue)
//	}, nil)
//
//	data.Set("count", 1) // prints 0 -> 1
//	data.Set("count", 1) // identical value, no notification
//	w.Destroy()
//
// Array wraps a sequence so that Push, Splice, Sort and friends notify the cell
// holding the array.
//
// # Dependency Discovery
//
// Track runs a function and returns every Cell read while it ran. Collectors form a
// per-goroutine stack, so a nested Track only sees its own reads:
//
//	deps := reactive.Track(func() {
//	    _ = data.Get("a")
//	    _ = data.Get("b")
//	})
//
// The Bus is the out-of-band equivalent: handlers registered with On, Once or
// Capture observe every read or write signal emitted by cells of the owner.
//
// # Liveness
//
// A Watch may carry a Liveness handle. Consumers outside the kernel decide what
// "alive" means; the sweep package destroys watches whose handle reports dead.
//
// # Thread Safety
//
// Cells, objects and arrays are safe for concurrent use. Notifications run
// synchronously on the goroutine performing the write; callers that mutate data
// from several goroutines serialize those writes themselves to keep notification
// order meaningful.
package reactive
