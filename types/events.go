package types

import "time"

// Events delivered to an Observer, one set per attempt.
//
// Attempt numbers start at 1. OperationID is shared by every event of one
// logical operation so sinks can group attempts.

// ServerSelectedEvent is emitted after server selection for an attempt.
type ServerSelectedEvent struct {
	OperationID uint64
	Attempt     int
	Command     string
	Server      ServerID
	// Excluded is the server the selector was asked to avoid, if any.
	Excluded ServerID
}

// CommandStartedEvent is emitted right before the command is sent.
type CommandStartedEvent struct {
	OperationID uint64
	Attempt     int
	Command     string
	Database    string
	Server      ServerID
	// Payload is the encoded command. It is the same slice on every attempt
	// of an operation and must not be modified.
	Payload []byte
	// SessionID is the lsid attached to the command, empty without session.
	SessionID string
}

// CommandSucceededEvent is emitted when an attempt returns a reply.
type CommandSucceededEvent struct {
	OperationID uint64
	Attempt     int
	Command     string
	Server      ServerID
	Duration    time.Duration
}

// CommandFailedEvent is emitted when an attempt fails.
type CommandFailedEvent struct {
	OperationID uint64
	Attempt     int
	Command     string
	Server      ServerID
	Duration    time.Duration
	Category    ErrorCategory
	Err         error
}

// RetryEvent is emitted when an operation consumes its retry.
type RetryEvent struct {
	OperationID uint64
	Command     string
	// FailedServer is the server of the first attempt.
	FailedServer ServerID
	Category     ErrorCategory
	Err          error
}
