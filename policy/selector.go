package policy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/types"
)

const (
	// DefaultSelectionTimeout bounds how long Select waits for a suitable server.
	DefaultSelectionTimeout = 30 * time.Second

	// DefaultLocalThreshold is the latency window above the fastest server.
	DefaultLocalThreshold = 15 * time.Millisecond
)

// ServerSource is the read-only topology the selector chooses from.
//
// Implementations include topology.Local and topology.NATS.
type ServerSource interface {
	// Servers returns a snapshot of the known servers.
	Servers() []types.ServerDescription

	// ServerState returns the reachability of a server.
	ServerState(id types.ServerID) types.Reachability

	// Changed returns a channel closed on the next topology change.
	Changed() <-chan struct{}
}

// Selector picks a server for each attempt of a read.
//
// Selection honors the read preference, then prefers, in order: servers
// that are neither excluded nor suspect, suspect servers, and finally the
// excluded servers. Within the chosen group a random server inside the
// latency window is returned.
type Selector struct {
	source         ServerSource
	timeout        time.Duration
	localThreshold time.Duration
	logger         types.Logger
	intn           func(n int) int
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithSelectionTimeout sets how long Select waits for a suitable server.
//
// Parameters:
//   - d: Selection timeout; the context deadline still applies
//
// Returns:
//   - SelectorOption: Configuration option
func WithSelectionTimeout(d time.Duration) SelectorOption {
	return func(s *Selector) {
		s.timeout = d
	}
}

// WithLocalThreshold sets the latency window.
//
// Parameters:
//   - d: Maximum RTT distance from the fastest suitable server
//
// Returns:
//   - SelectorOption: Configuration option
func WithLocalThreshold(d time.Duration) SelectorOption {
	return func(s *Selector) {
		s.localThreshold = d
	}
}

// WithSelectorLogger sets the logger for the selector.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - SelectorOption: Configuration option
func WithSelectorLogger(l types.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = l
	}
}

// NewSelector creates a new Selector over a topology.
//
// Defaults: timeout=30s, localThreshold=15ms
//
// Parameters:
//   - source: The topology to select from
//   - opts: Optional configuration options
//
// Returns:
//   - *Selector: A new selector
func NewSelector(source ServerSource, opts ...SelectorOption) *Selector {
	s := &Selector{
		source:         source,
		timeout:        DefaultSelectionTimeout,
		localThreshold: DefaultLocalThreshold,
		//nolint:gosec // load balancing does not need crypto randomness
		intn: rand.IntN,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = logging.OrNop(s.logger)

	return s
}

// Select returns a server satisfying rp.
//
// When excluded servers are given, any other suitable server is preferred;
// if none exists the excluded server is returned again. Select blocks
// waiting for topology changes until the selection timeout or the context
// ends.
//
// Parameters:
//   - ctx: Context bounding the wait
//   - rp: Read preference
//   - excluded: Servers to avoid, typically the one that just failed
//
// Returns:
//   - types.ServerDescription: The selected server
//   - error: ErrInvalidReadPreference, or ErrNoEligibleServer (wrapping the
//     context error if the context ended first)
func (s *Selector) Select(ctx context.Context, rp types.ReadPreference, excluded ...types.ServerID) (types.ServerDescription, error) {
	if err := rp.Validate(); err != nil {
		return types.ServerDescription{}, err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		// Grab the change channel before the snapshot so no update is missed
		changed := s.source.Changed()

		if desc, ok := s.pick(rp, excluded); ok {
			return desc, nil
		}

		s.logger.Debug("no suitable server, waiting for topology change",
			"mode", rp.Mode.String(),
		)

		select {
		case <-changed:
		case <-timer.C:
			return types.ServerDescription{}, fmt.Errorf("%w: read preference %s after %s",
				types.ErrNoEligibleServer, rp.Mode, s.timeout)
		case <-ctx.Done():
			return types.ServerDescription{}, fmt.Errorf("%w: %w", types.ErrNoEligibleServer, ctx.Err())
		}
	}
}

func (s *Selector) pick(rp types.ReadPreference, excluded []types.ServerID) (types.ServerDescription, bool) {
	servers := s.source.Servers()
	cands := make([]candidate, 0, len(servers))
	for _, desc := range servers {
		state := s.source.ServerState(desc.ID)
		if state == types.Unreachable {
			continue
		}
		cands = append(cands, candidate{desc: desc, state: state})
	}

	// Healthy servers of any tier beat suspect ones, which beat the
	// server that just failed.
	var healthy, suspect, avoided [][]candidate
	for _, tier := range suitableTiers(rp, cands) {
		var h, sus, av []candidate
		for _, c := range tier {
			switch {
			case slices.Contains(excluded, c.desc.ID):
				av = append(av, c)
			case c.state == types.Suspect:
				sus = append(sus, c)
			default:
				h = append(h, c)
			}
		}
		healthy = append(healthy, h)
		suspect = append(suspect, sus)
		avoided = append(avoided, av)
	}

	groups := slices.Concat(healthy, suspect, avoided)
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		window := withinLatencyWindow(group, s.localThreshold)

		return window[s.intn(len(window))].desc, true
	}

	return types.ServerDescription{}, false
}
