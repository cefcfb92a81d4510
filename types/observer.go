package types

import "context"

// Observer receives per-attempt instrumentation events of read operations.
//
// Observers are for instrumentation only: they cannot influence the
// operation. Implementations must be safe for concurrent use and should
// return quickly, since events are delivered synchronously.
type Observer interface {
	// ServerSelected is called after a server was selected for an attempt.
	ServerSelected(ctx context.Context, ev ServerSelectedEvent)

	// CommandStarted is called right before an attempt is sent.
	CommandStarted(ctx context.Context, ev CommandStartedEvent)

	// CommandSucceeded is called when an attempt returned a reply.
	CommandSucceeded(ctx context.Context, ev CommandSucceededEvent)

	// CommandFailed is called when an attempt failed.
	CommandFailed(ctx context.Context, ev CommandFailedEvent)

	// RetryScheduled is called when an operation consumes its retry.
	RetryScheduled(ctx context.Context, ev RetryEvent)
}
