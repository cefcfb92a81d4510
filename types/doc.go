// Package types provides shared types and error definitions for the reprise library.
//
// This is a leaf package with zero reprise imports to prevent import cycles.
// All packages in reprise can safely import this package.
//
// # Topology
//
// ServerDescription describes one server known by a topology view:
//
//	type ServerDescription struct {
//	    ID   ServerID
//	    Type ServerType   // Standalone, RSPrimary, RSSecondary, Mongos, ...
//	    RTT  time.Duration
//	    Tags TagSet
//	}
//
// Reachability (Reachable, Suspect, Unreachable) is tracked by the view
// separately from the description.
//
// # Classification
//
// ErrorCategory is the result of classifying a failed attempt:
//
//   - NetworkTransient: connection failure before any reply bytes were read
//   - NotPrimary: the server is not (or no longer) the primary
//   - NodeIsRecovering: the server is in a transitional state
//   - ShutdownInProgress: the server is shutting down
//   - NonRetryable: everything else
//
// # Errors
//
// Sentinel errors are provided for common failure scenarios:
//
//   - ErrNoEligibleServer: server selection found nothing
//   - ErrDeadlineExceeded: the operation deadline expired
//   - ErrIneligibleOperation: the command cannot be retried
//   - ErrRetryDisabled: retryable reads are disabled
//
// Terminal read failures are returned as *ReadError, which unwraps to the
// last attempt's error (*ServerError, *NetworkError, ...) and matches the
// sentinel of its TerminalReason with errors.Is.
package types
