// Package prom provides a Prometheus client_golang implementation of the
// MetricsCollector interface.
//
// Usage:
//
//	collector := prom.New(prom.WithRegisterer(prometheus.DefaultRegisterer))
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithMetrics(collector),
//	)
//	http.Handle("/metrics", promhttp.Handler())
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arloliu/reprise/types"
)

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace  string
	subsystem  string
	registerer prometheus.Registerer
	buckets    []float64
}

// WithNamespace sets the metric namespace.
//
// Default: "reprise"
func WithNamespace(ns string) Option {
	return func(c *config) {
		c.namespace = ns
	}
}

// WithSubsystem sets the metric subsystem.
//
// Default: "reads"
func WithSubsystem(s string) Option {
	return func(c *config) {
		c.subsystem = s
	}
}

// WithRegisterer sets the registerer the metrics are registered with.
//
// Default: a new private registry, available from Registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = r
	}
}

// WithBuckets sets the attempt duration histogram buckets.
//
// Default: prometheus.DefBuckets
func WithBuckets(b []float64) Option {
	return func(c *config) {
		c.buckets = b
	}
}

// Collector implements types.MetricsCollector with Prometheus vectors.
//
// Thread-safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	readTotal         *prometheus.CounterVec
	readErrors        *prometheus.CounterVec
	readDuration      *prometheus.HistogramVec
	retryTotal        *prometheus.CounterVec
	retrySuccess      *prometheus.CounterVec
	terminalErrors    *prometheus.CounterVec
	selectionFailures prometheus.Counter
	serverSuspect     *prometheus.GaugeVec
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a Prometheus metrics collector.
//
// Registration panics on duplicate metric names, as promauto does.
//
// Parameters:
//   - opts: Configuration options
//
// Returns:
//   - *Collector: A new metrics collector ready for use
func New(opts ...Option) *Collector {
	cfg := config{
		namespace: "reprise",
		subsystem: "reads",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Collector{}
	if cfg.registerer == nil {
		c.registry = prometheus.NewRegistry()
		cfg.registerer = c.registry
	}
	factory := promauto.With(cfg.registerer)

	c.readTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "attempts_total",
			Help:      "Total number of read attempts sent to a server",
		},
		[]string{"server"},
	)
	c.readErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "attempt_errors_total",
			Help:      "Total number of failed read attempts by error category",
		},
		[]string{"server", "category"},
	)
	c.readDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of read attempts in seconds",
			Buckets:   cfg.buckets,
		},
		[]string{"server"},
	)
	c.retryTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "retries_total",
			Help:      "Total number of retried reads",
		},
		[]string{"from", "to"},
	)
	c.retrySuccess = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "retry_success_total",
			Help:      "Total number of retries that succeeded",
		},
		[]string{"server"},
	)
	c.terminalErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "terminal_errors_total",
			Help:      "Total number of failed read operations by reason",
		},
		[]string{"reason"},
	)
	c.selectionFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "server_selection_failures_total",
			Help:      "Total number of server selections that found no server",
		},
	)
	c.serverSuspect = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "server_suspect",
			Help:      "Server suspect state (0=healthy, 1=suspect)",
		},
		[]string{"server"},
	)

	return c
}

// Registry returns the private registry, or nil when WithRegisterer was used.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// IncReadTotal increments the attempt counter of a server.
func (c *Collector) IncReadTotal(server types.ServerID) {
	c.readTotal.WithLabelValues(string(server)).Inc()
}

// IncReadError increments the failed attempt counter of a server.
func (c *Collector) IncReadError(server types.ServerID, category types.ErrorCategory) {
	c.readErrors.WithLabelValues(string(server), category.String()).Inc()
}

// ObserveReadDuration records an attempt duration in seconds.
func (c *Collector) ObserveReadDuration(server types.ServerID, seconds float64) {
	c.readDuration.WithLabelValues(string(server)).Observe(seconds)
}

// IncRetryTotal increments the retry counter.
func (c *Collector) IncRetryTotal(from, to types.ServerID) {
	c.retryTotal.WithLabelValues(string(from), string(to)).Inc()
}

// IncRetrySuccess increments the counter of retries that succeeded.
func (c *Collector) IncRetrySuccess(server types.ServerID) {
	c.retrySuccess.WithLabelValues(string(server)).Inc()
}

// IncTerminalError increments the counter of operations that failed.
func (c *Collector) IncTerminalError(reason types.TerminalReason) {
	c.terminalErrors.WithLabelValues(reason.String()).Inc()
}

// IncServerSelectionFailure increments the selection failure counter.
func (c *Collector) IncServerSelectionFailure() {
	c.selectionFailures.Inc()
}

// SetServerSuspect sets the suspect gauge of a server.
func (c *Collector) SetServerSuspect(server types.ServerID, suspect bool) {
	v := 0.0
	if suspect {
		v = 1
	}
	c.serverSuspect.WithLabelValues(string(server)).Set(v)
}
