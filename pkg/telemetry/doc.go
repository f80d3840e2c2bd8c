// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// the reactor kernel.
//
// Metrics are opt-in: a nil *Metrics is valid and records nothing, so
// components take one unconditionally.
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//
//	ev := sandbox.New(sandbox.WithMetrics(m))
//
// Metrics collected:
//   - reactor_evaluations_total: evaluations by mode and status
//   - reactor_evaluation_duration_seconds: evaluation duration by mode
//   - reactor_scope_collisions_total: names found in both local and global data
//   - reactor_cell_writes_total: distinct writes observed on the signal bus
//   - reactor_sweeps_total: liveness sweeper passes
//   - reactor_sweep_collected_total: subscriptions destroyed by the sweeper
//   - reactor_live_subscriptions: subscriptions tracked after the last pass
//   - reactor_active_bindings: bindings currently bound
//   - reactor_events_emitted_total: application events emitted
//
// Tracing uses the global OpenTelemetry tracer provider. Configure it before
// building a runtime:
//
//	otel.SetTracerProvider(tp)
package telemetry
