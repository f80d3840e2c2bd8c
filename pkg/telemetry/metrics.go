package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactor").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for evaluation duration.
	// Default: small buckets from 10µs to 100ms.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the evaluation duration buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "reactor",
		Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the kernel collectors. All methods are safe on a nil receiver.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	scopeCollisions    prometheus.Counter
	cellWrites         prometheus.Counter
	sweepsTotal        prometheus.Counter
	sweepCollected     prometheus.Counter
	sweepDuration      prometheus.Histogram
	liveSubscriptions  prometheus.Gauge
	activeBindings     prometheus.Gauge
	eventsEmitted      prometheus.Counter
}

// NewMetrics registers the kernel collectors. Registering twice on the same
// registry panics, as with any promauto collector.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		evaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluations_total",
			Help:        "Total number of expression evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"mode", "status"}),

		evaluationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluation_duration_seconds",
			Help:        "Expression evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mode"}),

		scopeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "scope_collisions_total",
			Help:        "Names present in both local and global data during evaluation",
			ConstLabels: config.ConstLabels,
		}),

		cellWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cell_writes_total",
			Help:        "Total number of distinct cell writes",
			ConstLabels: config.ConstLabels,
		}),

		sweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sweeps_total",
			Help:        "Total number of liveness sweeper passes",
			ConstLabels: config.ConstLabels,
		}),

		sweepCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sweep_collected_total",
			Help:        "Total number of subscriptions destroyed by the sweeper",
			ConstLabels: config.ConstLabels,
		}),

		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sweep_duration_seconds",
			Help:        "Liveness sweeper pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		liveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_subscriptions",
			Help:        "Number of subscriptions kept by the last sweeper pass",
			ConstLabels: config.ConstLabels,
		}),

		activeBindings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_bindings",
			Help:        "Number of bindings currently bound",
			ConstLabels: config.ConstLabels,
		}),

		eventsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_emitted_total",
			Help:        "Total number of application events emitted",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ObserveEvaluation records one evaluation. mode is the sandbox mode name.
func (m *Metrics) ObserveEvaluation(mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.evaluationsTotal.WithLabelValues(mode, status).Inc()
	m.evaluationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// IncScopeCollision records a local/global name collision.
func (m *Metrics) IncScopeCollision() {
	if m == nil {
		return
	}
	m.scopeCollisions.Inc()
}

// IncWrites records a cell write.
func (m *Metrics) IncWrites() {
	if m == nil {
		return
	}
	m.cellWrites.Inc()
}

// ObserveSweep records one sweeper pass.
func (m *Metrics) ObserveSweep(duration time.Duration, collected, live int) {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
	m.sweepCollected.Add(float64(collected))
	m.sweepDuration.Observe(duration.Seconds())
	m.liveSubscriptions.Set(float64(live))
}

// AddBindings adjusts the active bindings gauge by delta.
func (m *Metrics) AddBindings(delta int) {
	if m == nil {
		return
	}
	m.activeBindings.Add(float64(delta))
}

// IncEvents records an emitted application event.
func (m *Metrics) IncEvents() {
	if m == nil {
		return
	}
	m.eventsEmitted.Inc()
}
