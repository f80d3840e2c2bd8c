// Package store keeps keyed data shared between parts of an application.
//
// Three independent namespaces are provided:
//
//   - data: values stored once under a key, optionally made reactive
//   - requests: the last payload received for a key, e.g. a fetch result
//   - waits: data that consumers wait for; Provide delivers it to every
//     consumer registered with Wait, now or later
//
// Usage:
//
//	s := store.New(owner)
//
//	s.Wait("profile", func(data any) {
//	    render(data.(*reactive.Object))
//	})
//	s.Provide("profile", map[string]any{"name": "ada"}, false)
package store
