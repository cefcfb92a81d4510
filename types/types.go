// Package types provides shared types and errors for the reprise library.
//
// This is a "leaf" package with no imports from other reprise packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"strings"
	"time"
)

// ServerID identifies a server in the topology, usually "host:port".
type ServerID string

// String returns the string representation of the ServerID.
func (s ServerID) String() string {
	return string(s)
}

// ServerType is the role a server plays in the topology.
type ServerType int

const (
	// ServerUnknown is a server whose role has not been discovered yet.
	// Unknown servers are never selected.
	ServerUnknown ServerType = iota
	// ServerStandalone is a single server deployment.
	ServerStandalone
	// ServerRSPrimary is the writable member of a replica set.
	ServerRSPrimary
	// ServerRSSecondary is a readable replica set member.
	ServerRSSecondary
	// ServerRSArbiter is a voting-only member holding no data.
	ServerRSArbiter
	// ServerMongos is a query router in a sharded deployment.
	ServerMongos
)

var serverTypeNames = map[ServerType]string{
	ServerUnknown:     "Unknown",
	ServerStandalone:  "Standalone",
	ServerRSPrimary:   "RSPrimary",
	ServerRSSecondary: "RSSecondary",
	ServerRSArbiter:   "RSArbiter",
	ServerMongos:      "Mongos",
}

// String returns the server type name.
func (t ServerType) String() string {
	if name, ok := serverTypeNames[t]; ok {
		return name
	}

	return "Unknown"
}

// ParseServerType parses a server type name, case-insensitively.
//
// Unrecognized names parse as ServerUnknown.
func ParseServerType(s string) ServerType {
	for t, name := range serverTypeNames {
		if strings.EqualFold(name, s) {
			return t
		}
	}

	return ServerUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (t ServerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ServerType) UnmarshalText(b []byte) error {
	*t = ParseServerType(string(b))
	return nil
}

// Reachability is the last known state of a server as seen by the topology view.
type Reachability int

const (
	// Unreachable servers are never selected.
	Unreachable Reachability = iota
	// Reachable servers are selected normally.
	Reachable
	// Suspect servers failed recently. They stay selectable but are only
	// used when no reachable alternative exists.
	Suspect
)

// String returns the reachability name.
func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case Suspect:
		return "suspect"
	default:
		return "unreachable"
	}
}

// TagSet is a set of server tags, e.g. {"dc": "east", "rack": "1"}.
type TagSet map[string]string

// Matches reports whether every tag in want is present in s with the same value.
// An empty want matches any server.
func (s TagSet) Matches(want TagSet) bool {
	for k, v := range want {
		if s[k] != v {
			return false
		}
	}

	return true
}

// ServerDescription describes a server as known by the topology view.
type ServerDescription struct {
	// ID identifies the server.
	ID ServerID `json:"id" yaml:"id"`

	// Type is the server's role.
	Type ServerType `json:"type" yaml:"type"`

	// RTT is the average round trip time to the server.
	RTT time.Duration `json:"rtt" yaml:"rtt"`

	// Tags are the server's replica set tags.
	Tags TagSet `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ReadPreferenceMode selects which server roles can serve a read.
type ReadPreferenceMode int

const (
	// Primary reads only from the primary.
	Primary ReadPreferenceMode = iota
	// PrimaryPreferred reads from the primary, falling back to secondaries.
	PrimaryPreferred
	// Secondary reads only from secondaries.
	Secondary
	// SecondaryPreferred reads from secondaries, falling back to the primary.
	SecondaryPreferred
	// Nearest reads from any data-bearing member within the latency window.
	Nearest
)

var readPreferenceNames = map[ReadPreferenceMode]string{
	Primary:            "primary",
	PrimaryPreferred:   "primaryPreferred",
	Secondary:          "secondary",
	SecondaryPreferred: "secondaryPreferred",
	Nearest:            "nearest",
}

// String returns the mode name as used in connection strings.
func (m ReadPreferenceMode) String() string {
	if name, ok := readPreferenceNames[m]; ok {
		return name
	}

	return "unknown"
}

// ParseReadPreferenceMode parses a mode name, case-insensitively.
func ParseReadPreferenceMode(s string) (ReadPreferenceMode, error) {
	for m, name := range readPreferenceNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}

	return Primary, ErrInvalidReadPreference
}

// ReadPreference is the caller's declared routing preference for a read.
type ReadPreference struct {
	// Mode selects eligible server roles.
	Mode ReadPreferenceMode

	// TagSets are tried in order; the first set matching at least one
	// eligible server wins. Empty means no tag filtering.
	TagSets []TagSet
}

// Validate checks the read preference for contradictions.
//
// Returns:
//   - error: ErrInvalidReadPreference if mode is Primary with tag sets
//     or the mode is unknown, nil otherwise
func (rp ReadPreference) Validate() error {
	if _, ok := readPreferenceNames[rp.Mode]; !ok {
		return ErrInvalidReadPreference
	}
	if rp.Mode == Primary && len(rp.TagSets) > 0 {
		return errors.Join(ErrInvalidReadPreference, errors.New("reprise: tag sets are not allowed with primary mode"))
	}

	return nil
}

// ErrorCategory is the retry classification of a failed attempt.
type ErrorCategory int

const (
	// NonRetryable failures are surfaced to the caller as-is.
	NonRetryable ErrorCategory = iota
	// NetworkTransient failures happened before any reply bytes were read.
	NetworkTransient
	// NotPrimary means the server lost or never had the primary role.
	NotPrimary
	// NodeIsRecovering means the server is in a transitional replication state.
	NodeIsRecovering
	// ShutdownInProgress means the server is shutting down.
	ShutdownInProgress
)

// String returns the category name.
func (c ErrorCategory) String() string {
	switch c {
	case NetworkTransient:
		return "network_transient"
	case NotPrimary:
		return "not_primary"
	case NodeIsRecovering:
		return "node_is_recovering"
	case ShutdownInProgress:
		return "shutdown_in_progress"
	default:
		return "non_retryable"
	}
}

// Retryable reports whether the category allows a retry.
func (c ErrorCategory) Retryable() bool {
	return c != NonRetryable
}

// TerminalReason explains why an operation ended without a successful reply.
type TerminalReason int

const (
	// ReasonNonRetryable means the last failure was classified non-retryable.
	ReasonNonRetryable TerminalReason = iota
	// ReasonRetryExhausted means the single retry was consumed and failed.
	ReasonRetryExhausted
	// ReasonRetryDisabled means retryable reads are turned off.
	ReasonRetryDisabled
	// ReasonIneligible means the command is not eligible for a retry.
	ReasonIneligible
	// ReasonNoEligibleServer means server selection found nothing.
	ReasonNoEligibleServer
	// ReasonDeadline means the operation deadline expired.
	ReasonDeadline
)

// String returns the reason name, used as a metrics label.
func (r TerminalReason) String() string {
	switch r {
	case ReasonRetryExhausted:
		return "retry_exhausted"
	case ReasonRetryDisabled:
		return "retry_disabled"
	case ReasonIneligible:
		return "ineligible"
	case ReasonNoEligibleServer:
		return "no_eligible_server"
	case ReasonDeadline:
		return "deadline"
	default:
		return "non_retryable"
	}
}

// CommandShape is what retry eligibility is decided on.
type CommandShape struct {
	// Name is the command name, the first key of the command document.
	Name string

	// Database is the target database.
	Database string

	// PipelineStages lists aggregation stage names in order, e.g. "$match".
	PipelineStages []string

	// Pinned is set when the command depends on server-pinned state
	// such as an open cursor.
	Pinned bool
}

// HasStage reports whether the pipeline contains the given stage.
func (s CommandShape) HasStage(stage string) bool {
	for _, st := range s.PipelineStages {
		if st == stage {
			return true
		}
	}

	return false
}

// Timestamp is a logical cluster timestamp: seconds plus an increment.
type Timestamp struct {
	T uint32
	I uint32
}

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts.T == 0 && ts.I == 0
}

// After reports whether ts is strictly later than other.
func (ts Timestamp) After(other Timestamp) bool {
	if ts.T != other.T {
		return ts.T > other.T
	}

	return ts.I > other.I
}

// ReplyMetadata carries the causal consistency tokens of a successful reply.
type ReplyMetadata struct {
	// ClusterTime is the highest cluster time the server has seen.
	ClusterTime Timestamp

	// OperationTime is the time of the operation on the server.
	OperationTime Timestamp
}
