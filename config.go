package reprise

import (
	"time"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/internal/metrics"
	"github.com/arloliu/reprise/internal/observe"
	"github.com/arloliu/reprise/policy"
	"github.com/arloliu/reprise/types"
)

// ClientConfig holds configuration for reprise clients.
type ClientConfig struct {
	// RetryReads enables the single automatic retry of eligible reads.
	RetryReads bool

	// ReadPreference is used when an operation does not declare one.
	ReadPreference ReadPreference

	// ServerSelectionTimeout bounds each server selection. The operation
	// deadline still applies.
	ServerSelectionTimeout time.Duration

	// LocalThreshold is the latency window of the default selector.
	LocalThreshold time.Duration

	// SuspectTTL is how long the default tracker keeps a failed server suspect.
	SuspectTTL time.Duration

	// SessionIdleTimeout is how long pooled implicit session ids are kept.
	SessionIdleTimeout time.Duration

	Selector        ServerSelector
	FailoverTracker FailoverTracker
	Classifier      Classifier
	Eligibility     EligibilityFunc
	Observer        Observer
	Metrics         MetricsCollector
	Logger          types.Logger
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Defaults:
//   - RetryReads: true
//   - ReadPreference: primary
//   - ServerSelectionTimeout: 30s, LocalThreshold: 15ms
//   - SuspectTTL: 10s
//   - Selector, FailoverTracker: nil (built over the topology view by NewClient)
//   - Classifier: policy.DefaultClassifier
//   - Eligibility: policy.DefaultEligibility
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		RetryReads:             true,
		ReadPreference:         ReadPreference{Mode: Primary},
		ServerSelectionTimeout: policy.DefaultSelectionTimeout,
		LocalThreshold:         policy.DefaultLocalThreshold,
		SuspectTTL:             policy.DefaultSuspectTTL,
		Classifier:             policy.NewDefaultClassifier(),
		Eligibility:            policy.DefaultEligibility,
		Observer:               observe.NopObserver{},
		Metrics:                metrics.NewNopMetrics(),
		Logger:                 logging.NewNopLogger(),
	}
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithRetryReads enables or disables retryable reads.
//
// When disabled, the retry budget of every operation is zero and the first
// failure is always returned.
//
// Parameters:
//   - enabled: true to retry eligible reads once
//
// Returns:
//   - Option: Configuration option
func WithRetryReads(enabled bool) Option {
	return func(c *ClientConfig) {
		c.RetryReads = enabled
	}
}

// WithReadPreference sets the default read preference.
//
// Parameters:
//   - rp: Read preference for operations that do not declare one
//
// Returns:
//   - Option: Configuration option
func WithReadPreference(rp ReadPreference) Option {
	return func(c *ClientConfig) {
		c.ReadPreference = rp
	}
}

// WithServerSelectionTimeout sets how long selection waits for a server.
//
// Parameters:
//   - d: Selection timeout
//
// Returns:
//   - Option: Configuration option
func WithServerSelectionTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.ServerSelectionTimeout = d
	}
}

// WithLocalThreshold sets the latency window of the default selector.
//
// Parameters:
//   - d: Latency window above the fastest suitable server
//
// Returns:
//   - Option: Configuration option
func WithLocalThreshold(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.LocalThreshold = d
	}
}

// WithSuspectTTL sets how long the default tracker keeps a server suspect.
//
// Parameters:
//   - d: Suspect duration
//
// Returns:
//   - Option: Configuration option
func WithSuspectTTL(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.SuspectTTL = d
	}
}

// WithSessionIdleTimeout sets how long pooled implicit session ids are kept.
//
// Parameters:
//   - d: Idle timeout
//
// Returns:
//   - Option: Configuration option
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.SessionIdleTimeout = d
	}
}

// WithSelector replaces the default server selector.
//
// Parameters:
//   - s: The selector to use
//
// Returns:
//   - Option: Configuration option
func WithSelector(s ServerSelector) Option {
	return func(c *ClientConfig) {
		c.Selector = s
	}
}

// WithFailoverTracker replaces the default failover tracker.
//
// Parameters:
//   - t: The tracker to use
//
// Returns:
//   - Option: Configuration option
func WithFailoverTracker(t FailoverTracker) Option {
	return func(c *ClientConfig) {
		c.FailoverTracker = t
	}
}

// WithClassifier replaces the default error classifier.
//
// Parameters:
//   - cl: The classifier to use
//
// Returns:
//   - Option: Configuration option
func WithClassifier(cl Classifier) Option {
	return func(c *ClientConfig) {
		c.Classifier = cl
	}
}

// WithEligibility replaces the retry eligibility predicate.
//
// Parameters:
//   - fn: Predicate deciding which commands may be retried
//
// Returns:
//   - Option: Configuration option
func WithEligibility(fn EligibilityFunc) Option {
	return func(c *ClientConfig) {
		c.Eligibility = fn
	}
}

// WithObserver adds an observer receiving per-attempt events.
//
// When given more than once, every observer receives every event in the
// order the options were applied.
//
// Parameters:
//   - o: The observer
//
// Returns:
//   - Option: Configuration option
func WithObserver(o Observer) Option {
	return func(c *ClientConfig) {
		switch prev := c.Observer.(type) {
		case nil:
			c.Observer = o
		case observe.Multi:
			c.Observer = append(prev[:len(prev):len(prev)], o)
		default:
			c.Observer = observe.Multi{prev, o}
		}
	}
}

// WithMetrics sets the metrics collector for the client.
//
// The collector is also passed to the default failover tracker.
//
// Example with VictoriaMetrics:
//
//	import vmmetrics "github.com/arloliu/reprise/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithMetrics(collector),
//	)
//
// Parameters:
//   - collector: The metrics collector
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger for the client.
//
// *slog.Logger satisfies types.Logger directly:
//
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithLogger(slog.Default()),
//	)
//
// Parameters:
//   - logger: The logger
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}
