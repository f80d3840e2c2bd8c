// Package inspect serves a runtime over HTTP for debugging and tooling.
//
// Routes:
//
//	GET  /healthz        runtime status
//	GET  /metrics        Prometheus metrics
//	GET  /data           snapshot of the instance data
//	GET  /data/{key}     one property
//	PUT  /data/{key}     replace one property with the JSON body
//	POST /eval           evaluate {"expression": "...", "mode": "return"}
//	GET  /subscriptions  binding, group and sweeper counts
//	GET  /watch          websocket stream of a property or expression
//
// A /watch connection is the liveness handle of the subscription it opens:
// once the client disconnects, the next sweep collects the subscription.
//
//	srv := inspect.New(rt, inspect.WithGatherer(registry))
//	http.ListenAndServe(":7070", srv.Handler())
package inspect
