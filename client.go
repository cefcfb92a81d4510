package reprise

import "github.com/arloliu/reprise/types"

// Type aliases for convenience - re-export from types package.
type (
	ServerID           = types.ServerID
	ServerType         = types.ServerType
	ServerDescription  = types.ServerDescription
	Reachability       = types.Reachability
	TagSet             = types.TagSet
	ReadPreference     = types.ReadPreference
	ReadPreferenceMode = types.ReadPreferenceMode
	ErrorCategory      = types.ErrorCategory
	TerminalReason     = types.TerminalReason
	CommandShape       = types.CommandShape
	Timestamp          = types.Timestamp
	ReplyMetadata      = types.ReplyMetadata
	Logger             = types.Logger
	MetricsCollector   = types.MetricsCollector
	Observer           = types.Observer
	ServerError        = types.ServerError
	NetworkError       = types.NetworkError
	ReadError          = types.ReadError
)

// Re-export read preference modes for convenience.
const (
	Primary            = types.Primary
	PrimaryPreferred   = types.PrimaryPreferred
	Secondary          = types.Secondary
	SecondaryPreferred = types.SecondaryPreferred
	Nearest            = types.Nearest
)

// Re-export error categories for convenience.
const (
	NonRetryable       = types.NonRetryable
	NetworkTransient   = types.NetworkTransient
	NotPrimary         = types.NotPrimary
	NodeIsRecovering   = types.NodeIsRecovering
	ShutdownInProgress = types.ShutdownInProgress
)

// Re-export sentinel errors for convenience.
var (
	ErrNoEligibleServer    = types.ErrNoEligibleServer
	ErrDeadlineExceeded    = types.ErrDeadlineExceeded
	ErrIneligibleOperation = types.ErrIneligibleOperation
	ErrRetryDisabled       = types.ErrRetryDisabled
	ErrClientClosed        = types.ErrClientClosed
)
