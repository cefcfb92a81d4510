package policy

import (
	"sync"
	"time"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/internal/metrics"
	"github.com/arloliu/reprise/types"
)

// DefaultSuspectTTL is how long a failed server stays suspect.
const DefaultSuspectTTL = 10 * time.Second

// SuspectMarker is the write side of a topology view: the only state the
// tracker may change is the suspect hint of a server.
type SuspectMarker interface {
	// MarkSuspect flags a server as suspect until the given time.
	MarkSuspect(id types.ServerID, until time.Time)

	// ClearSuspect removes the suspect flag of a server.
	ClearSuspect(id types.ServerID)
}

type serverFailures struct {
	count       int
	lastFailure time.Time
}

// FailoverTracker records failed servers and marks them suspect so the
// next selection deprioritizes them.
//
// The hint is best effort: it expires after the suspect TTL and never
// removes a server from the topology.
type FailoverTracker struct {
	marker     SuspectMarker
	suspectTTL time.Duration
	metrics    types.MetricsCollector
	logger     types.Logger
	now        func() time.Time

	mu       sync.Mutex
	failures map[types.ServerID]*serverFailures
}

// FailoverTrackerOption configures a FailoverTracker.
type FailoverTrackerOption func(*FailoverTracker)

// WithSuspectTTL sets how long a failed server stays suspect.
//
// Parameters:
//   - d: Suspect duration
//
// Returns:
//   - FailoverTrackerOption: Configuration option
func WithSuspectTTL(d time.Duration) FailoverTrackerOption {
	return func(f *FailoverTracker) {
		f.suspectTTL = d
	}
}

// WithTrackerMetrics sets the metrics collector for the tracker.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - FailoverTrackerOption: Configuration option
func WithTrackerMetrics(m types.MetricsCollector) FailoverTrackerOption {
	return func(f *FailoverTracker) {
		f.metrics = m
	}
}

// WithTrackerLogger sets the logger for the tracker.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - FailoverTrackerOption: Configuration option
func WithTrackerLogger(l types.Logger) FailoverTrackerOption {
	return func(f *FailoverTracker) {
		f.logger = l
	}
}

// NewFailoverTracker creates a new FailoverTracker.
//
// Defaults: suspectTTL=10s
//
// Parameters:
//   - marker: Topology view receiving suspect hints, may be nil
//   - opts: Optional configuration options
//
// Returns:
//   - *FailoverTracker: A new tracker
func NewFailoverTracker(marker SuspectMarker, opts ...FailoverTrackerOption) *FailoverTracker {
	f := &FailoverTracker{
		marker:     marker,
		suspectTTL: DefaultSuspectTTL,
		now:        time.Now,
		failures:   make(map[types.ServerID]*serverFailures),
	}

	for _, opt := range opts {
		opt(f)
	}

	f.metrics = metrics.OrNop(f.metrics)
	f.logger = logging.OrNop(f.logger)

	return f
}

// MarkFailed records a failure of server and marks it suspect.
//
// If the suspect TTL has passed since the previous failure, the
// consecutive failure count restarts at 1.
//
// Parameters:
//   - server: The server that failed
//   - category: Classification of the failure
func (f *FailoverTracker) MarkFailed(server types.ServerID, category types.ErrorCategory) {
	now := f.now()

	f.mu.Lock()
	sf, ok := f.failures[server]
	if !ok {
		sf = &serverFailures{}
		f.failures[server] = sf
	}
	if !sf.lastFailure.IsZero() && now.Sub(sf.lastFailure) > f.suspectTTL {
		sf.count = 0
	}
	sf.count++
	sf.lastFailure = now
	count := sf.count
	f.mu.Unlock()

	if f.marker != nil {
		f.marker.MarkSuspect(server, now.Add(f.suspectTTL))
	}
	f.metrics.SetServerSuspect(server, true)
	f.logger.Warn("server marked suspect",
		"server", server.String(),
		"category", category.String(),
		"consecutiveFailures", count,
		"ttl", f.suspectTTL,
	)
}

// Reset clears the failure count and the suspect hint of a server.
//
// It is meant for the topology monitor, e.g. after a successful heartbeat.
//
// Parameters:
//   - server: The server to reset
func (f *FailoverTracker) Reset(server types.ServerID) {
	f.mu.Lock()
	_, had := f.failures[server]
	delete(f.failures, server)
	f.mu.Unlock()

	if !had {
		return
	}
	if f.marker != nil {
		f.marker.ClearSuspect(server)
	}
	f.metrics.SetServerSuspect(server, false)
	f.logger.Info("server suspect hint cleared", "server", server.String())
}

// Failures returns the consecutive failure count of a server.
//
// Parameters:
//   - server: The server to check
//
// Returns:
//   - int: Number of failures within the suspect TTL of each other
func (f *FailoverTracker) Failures(server types.ServerID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sf, ok := f.failures[server]; ok {
		return sf.count
	}

	return 0
}
