package vm

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/reprise/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "reprise"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Operation-level metrics are pre-created at initialization. Server-scoped
// metrics are created on first use since the server set is dynamic.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	retrySuccess      *metrics.Counter
	selectionFailures *metrics.Counter
	terminal          map[types.TerminalReason]*metrics.Counter

	suspect sync.Map // types.ServerID -> *atomic.Int64
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally
// unless WithMetricsSet is given.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix:   "reprise",
		terminal: make(map[types.TerminalReason]*metrics.Counter),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates the metrics that carry no server label.
func (c *Collector) initMetrics() {
	p := c.prefix

	c.retrySuccess = c.set.NewCounter(p + "_retry_success_total")
	c.selectionFailures = c.set.NewCounter(p + "_server_selection_failures_total")

	for _, r := range []types.TerminalReason{
		types.ReasonNonRetryable,
		types.ReasonRetryExhausted,
		types.ReasonRetryDisabled,
		types.ReasonIneligible,
		types.ReasonNoEligibleServer,
		types.ReasonDeadline,
	} {
		c.terminal[r] = c.set.NewCounter(fmt.Sprintf(`%s_terminal_errors_total{reason="%s"}`, p, r))
	}
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Read Operations
// ----------------------

// IncReadTotal increments the attempt counter of a server.
func (c *Collector) IncReadTotal(server types.ServerID) {
	c.set.GetOrCreateCounter(c.name("read_total", "server", server)).Inc()
}

// IncReadError increments the failed attempt counter of a server.
func (c *Collector) IncReadError(server types.ServerID, category types.ErrorCategory) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_read_errors_total{server="%s",category="%s"}`,
		c.prefix, escape(string(server)), category)).Inc()
}

// ObserveReadDuration records an attempt duration in seconds.
func (c *Collector) ObserveReadDuration(server types.ServerID, seconds float64) {
	c.set.GetOrCreateHistogram(c.name("read_duration_seconds", "server", server)).Update(seconds)
}

// ----------------------
// Retry
// ----------------------

// IncRetryTotal increments the retry counter.
func (c *Collector) IncRetryTotal(from, to types.ServerID) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_retry_total{from="%s",to="%s"}`,
		c.prefix, escape(string(from)), escape(string(to)))).Inc()
}

// IncRetrySuccess increments the counter of retries that succeeded.
func (c *Collector) IncRetrySuccess(_ types.ServerID) {
	c.retrySuccess.Inc()
}

// IncTerminalError increments the counter of operations that failed.
func (c *Collector) IncTerminalError(reason types.TerminalReason) {
	if ctr, ok := c.terminal[reason]; ok {
		ctr.Inc()
		return
	}

	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_terminal_errors_total{reason="%s"}`, c.prefix, reason)).Inc()
}

// ----------------------
// Server Selection
// ----------------------

// IncServerSelectionFailure increments the selection failure counter.
func (c *Collector) IncServerSelectionFailure() {
	c.selectionFailures.Inc()
}

// SetServerSuspect sets the suspect gauge of a server.
func (c *Collector) SetServerSuspect(server types.ServerID, suspect bool) {
	v, loaded := c.suspect.LoadOrStore(server, &atomic.Int64{})
	state, _ := v.(*atomic.Int64)
	if !loaded {
		c.set.GetOrCreateGauge(c.name("server_suspect", "server", server), func() float64 {
			return float64(state.Load())
		})
	}

	if suspect {
		state.Store(1)
	} else {
		state.Store(0)
	}
}

func (c *Collector) name(metric, label string, server types.ServerID) string {
	return fmt.Sprintf(`%s_%s{%s="%s"}`, c.prefix, metric, label, escape(string(server)))
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escape(v string) string {
	return labelEscaper.Replace(v)
}
