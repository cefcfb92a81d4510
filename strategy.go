package reprise

import (
	"context"

	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// Transport sends an encoded command to one server.
//
// Implementations include adapter/nats (request/reply over NATS),
// adapter/sql (database/sql read replicas) and adapter/cql (CQL sessions).
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// Failures should be reported as *types.NetworkError (connection level,
// with BytesRead set when a reply was partially consumed) or
// *types.ServerError (the server answered with an error).
type Transport interface {
	// Send performs one round trip.
	//
	// Parameters:
	//   - ctx: Context carrying the operation deadline
	//   - server: The server to send to
	//   - msg: The encoded command, identical on every attempt
	//
	// Returns:
	//   - *wire.Reply: The server reply
	//   - error: Network or server error
	Send(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error)
}

// TopologyView is a read-only view of the servers known to the client.
//
// Implementations include topology.Local (in-memory) and topology.NATS
// (NATS KV backed). A view that also implements policy.SuspectMarker
// receives suspect hints from the default failover tracker.
type TopologyView interface {
	// Servers returns a snapshot of the known servers.
	Servers() []types.ServerDescription

	// ServerState returns the reachability of a server.
	ServerState(id types.ServerID) types.Reachability

	// Changed returns a channel closed on the next topology change.
	Changed() <-chan struct{}
}

// ServerSelector picks the server for each attempt.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// The default is policy.Selector.
type ServerSelector interface {
	// Select returns a server satisfying rp, preferring servers other than
	// excluded and falling back to an excluded server when it is the
	// only suitable one.
	//
	// Parameters:
	//   - ctx: Context bounding any wait for topology changes
	//   - rp: Read preference of the operation
	//   - excluded: Servers to avoid
	//
	// Returns:
	//   - ServerDescription: The selected server
	//   - error: types.ErrNoEligibleServer (possibly wrapped) when none is found
	Select(ctx context.Context, rp ReadPreference, excluded ...ServerID) (ServerDescription, error)
}

// FailoverTracker is told about the server that failed before a retry.
//
// It is called at most once per operation. The default is
// policy.FailoverTracker, which marks the server suspect for a short time.
type FailoverTracker interface {
	// MarkFailed records that server just failed with the given category.
	MarkFailed(server ServerID, category ErrorCategory)
}

// Classifier maps an attempt failure to a retry category.
//
// Classify must be pure and deterministic. The default is
// policy.DefaultClassifier.
type Classifier interface {
	// Classify returns the retry category of err.
	Classify(err error) ErrorCategory
}

// EligibilityFunc reports whether a command may be retried at all.
//
// The default is policy.DefaultEligibility.
type EligibilityFunc func(cmd CommandShape) bool
