package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// Options configures a session.
type Options struct {
	// CausalConsistency makes reads carry afterClusterTime so they observe
	// the session's previous operations. Defaults to true for explicit sessions.
	CausalConsistency bool
}

// Option configures session Options.
type Option func(*Options)

// WithCausalConsistency enables or disables causal consistency.
func WithCausalConsistency(enabled bool) Option {
	return func(o *Options) {
		o.CausalConsistency = enabled
	}
}

// Session is the logical session state threaded through every attempt of
// an operation.
//
// Explicit sessions are owned by the caller and span many operations.
// Implicit sessions are created for a single operation and returned to the
// pool afterwards. A session must not be used by two operations at once;
// Checkout enforces that.
type Session struct {
	id       uuid.UUID
	explicit bool
	causal   bool
	pool     *Pool

	mu            sync.Mutex
	clusterTime   types.Timestamp
	operationTime types.Timestamp
	inUse         bool
	ended         bool
	lastUsed      time.Time
}

// NewExplicit creates a caller-owned session that is not pooled.
func NewExplicit(opts ...Option) *Session {
	o := Options{CausalConsistency: true}
	for _, opt := range opts {
		opt(&o)
	}

	return &Session{
		id:       uuid.New(),
		explicit: true,
		causal:   o.CausalConsistency,
	}
}

// ID returns the session id sent as lsid.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// IsExplicit reports whether the caller owns the session.
func (s *Session) IsExplicit() bool {
	return s.explicit
}

// CausalConsistency reports whether reads carry afterClusterTime.
func (s *Session) CausalConsistency() bool {
	return s.causal
}

// ClusterTime returns the highest cluster time seen by the session.
func (s *Session) ClusterTime() types.Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clusterTime
}

// OperationTime returns the operation time of the last successful reply.
func (s *Session) OperationTime() types.Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.operationTime
}

// RecordSuccess advances the causal consistency tokens from a successful
// reply. Tokens never move backwards.
//
// Parameters:
//   - md: Metadata of the successful reply
func (s *Session) RecordSuccess(md types.ReplyMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if md.ClusterTime.After(s.clusterTime) {
		s.clusterTime = md.ClusterTime
	}
	if md.OperationTime.After(s.operationTime) {
		s.operationTime = md.OperationTime
	}
}

// AdvanceClusterTime gossips a cluster time learned elsewhere into the session.
func (s *Session) AdvanceClusterTime(ts types.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts.After(s.clusterTime) {
		s.clusterTime = ts
	}
}

// AdvanceOperationTime moves the operation time forward, e.g. to read
// after an operation done through another session.
func (s *Session) AdvanceOperationTime(ts types.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts.After(s.operationTime) {
		s.operationTime = ts
	}
}

// Checkout marks the session as used by one operation.
//
// Returns:
//   - error: ErrSessionEnded after End, ErrSessionInUse if another
//     operation holds the session
func (s *Session) Checkout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return types.ErrSessionEnded
	}
	if s.inUse {
		return types.ErrSessionInUse
	}
	s.inUse = true

	return nil
}

// Checkin releases the session after an operation.
func (s *Session) Checkin() {
	s.mu.Lock()
	s.inUse = false
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// End ends the session. Implicit sessions go back to their pool.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.inUse = false
	pool := s.pool
	s.mu.Unlock()

	if pool != nil {
		pool.put(s.id)
	}
}

// Ended reports whether End was called.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ended
}

// Decorate returns a copy of cmd with the session fields attached:
// lsid, $clusterTime and, for causally consistent sessions with a known
// operation time, readConcern.afterClusterTime.
//
// It is called once per operation, before the command is encoded.
func (s *Session) Decorate(cmd wire.Document) wire.Document {
	s.mu.Lock()
	clusterTime := s.clusterTime
	operationTime := s.operationTime
	s.mu.Unlock()

	out := cmd.Set("lsid", wire.Document{wire.E("id", s.id)})
	if !clusterTime.IsZero() {
		out = out.Set("$clusterTime", wire.Document{wire.E("clusterTime", clusterTime)})
	}
	if s.causal && !operationTime.IsZero() {
		rc, _ := out.Doc("readConcern")
		out = out.Set("readConcern", rc.Set("afterClusterTime", operationTime))
	}

	return out
}
