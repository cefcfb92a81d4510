package types

import (
	"errors"
	"strconv"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrNoEligibleServer indicates that server selection found no server
	// matching the read preference before the selection timeout.
	ErrNoEligibleServer = errors.New("reprise: no eligible server")

	// ErrDeadlineExceeded indicates the operation deadline expired before
	// or during an attempt. Deadline failures are never retried.
	ErrDeadlineExceeded = errors.New("reprise: operation deadline exceeded")

	// ErrIneligibleOperation indicates the command is not eligible for a
	// retry, so its first failure is terminal.
	ErrIneligibleOperation = errors.New("reprise: operation is not eligible for retry")

	// ErrRetryDisabled indicates retryable reads are disabled, so the
	// first failure is terminal.
	ErrRetryDisabled = errors.New("reprise: retryable reads are disabled")

	// ErrClientClosed indicates an operation was attempted on a closed client.
	ErrClientClosed = errors.New("reprise: client is closed")

	// ErrNilTransport indicates that a nil transport was provided.
	ErrNilTransport = errors.New("reprise: transport cannot be nil")

	// ErrNilTopology indicates that a nil topology view was provided.
	ErrNilTopology = errors.New("reprise: topology view cannot be nil")

	// ErrSessionEnded indicates a session was used after End.
	ErrSessionEnded = errors.New("reprise: session has ended")

	// ErrSessionInUse indicates a session is already checked out by
	// another operation.
	ErrSessionInUse = errors.New("reprise: session is in use by another operation")

	// ErrInvalidReadPreference indicates an unknown or contradictory read preference.
	ErrInvalidReadPreference = errors.New("reprise: invalid read preference")

	// ErrInvalidCommand indicates an empty or malformed command document.
	ErrInvalidCommand = errors.New("reprise: invalid command document")
)

// Well-known error labels attached to server errors.
const (
	LabelNetworkError       = "NetworkError"
	LabelRetryableReadError = "RetryableReadError"
)

// ServerError is a structured error reported by a server in a reply.
type ServerError struct {
	// Code is the numeric server error code, 0 for legacy code-less errors.
	Code int32

	// CodeName is the symbolic name of Code, if known.
	CodeName string

	// Message is the server's error message.
	Message string

	// Labels are error labels attached by the server.
	Labels []string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	var b strings.Builder
	b.WriteString("reprise: server error")
	if e.Code != 0 {
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(int(e.Code)))
	}
	if e.CodeName != "" {
		b.WriteString(" (")
		b.WriteString(e.CodeName)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	return b.String()
}

// HasLabel reports whether the error carries the given label.
func (e *ServerError) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}

	return false
}

// NetworkError is a transport-level failure talking to a server.
type NetworkError struct {
	// Server is the server the failure happened on.
	Server ServerID

	// BytesRead counts reply bytes consumed before the failure.
	// A non-zero value means the reply was partially streamed.
	BytesRead int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	msg := "reprise: network error on " + string(e.Server)
	if e.BytesRead > 0 {
		msg += " after " + strconv.Itoa(e.BytesRead) + " bytes"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// ReadError is the terminal error of a read operation.
//
// Cause is the last attempt's error, unmodified. When server selection for
// the second attempt fails, Cause wraps both the first attempt's error and
// the selection error.
type ReadError struct {
	// Server is the server of the last attempt, empty if none was selected.
	Server ServerID

	// Command is the command name.
	Command string

	// Attempt is the number of attempts sent (0, 1 or 2).
	Attempt int

	// Category is the classification of Cause.
	Category ErrorCategory

	// Reason explains why the operation stopped.
	Reason TerminalReason

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	msg := "reprise: " + e.Command + " failed"
	if e.Server != "" {
		msg += " on " + string(e.Server)
	}
	msg += " after " + strconv.Itoa(e.Attempt) + " attempt(s) (" + e.Reason.String() + ")"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ReadError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error that corresponds to Reason.
func (e *ReadError) Is(target error) bool {
	switch e.Reason {
	case ReasonRetryDisabled:
		return target == ErrRetryDisabled
	case ReasonIneligible:
		return target == ErrIneligibleOperation
	case ReasonDeadline:
		return target == ErrDeadlineExceeded
	case ReasonNoEligibleServer:
		return target == ErrNoEligibleServer
	default:
		return false
	}
}
