package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/reprise/types"
)

// maxSends is the number of sends one read may perform.
const maxSends = 2

// ReadTracker records what happened to every read of the workload.
//
// It is also a types.Observer, so the client reports each attempt to it.
type ReadTracker struct {
	mu sync.Mutex

	// sends per operation id, dropped once the operation completes
	inflight map[uint64]int
	payloads map[uint64][]byte
	ops      map[uuid.UUID]struct{}

	succeeded int
	retried   int
	failed    map[types.TerminalReason]int
	violation error
}

var _ types.Observer = (*ReadTracker)(nil)

// NewReadTracker creates an empty tracker.
func NewReadTracker() *ReadTracker {
	return &ReadTracker{
		inflight: make(map[uint64]int),
		payloads: make(map[uint64][]byte),
		ops:      make(map[uuid.UUID]struct{}),
		failed:   make(map[types.TerminalReason]int),
	}
}

// Begin registers a new read and returns its id.
func (t *ReadTracker) Begin() uuid.UUID {
	id := uuid.New()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[id] = struct{}{}

	return id
}

// End records the outcome of a read started with Begin.
func (t *ReadTracker) End(id uuid.UUID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.ops, id)

	if err == nil {
		t.succeeded++
		return
	}

	var re *types.ReadError
	if errors.As(err, &re) {
		t.failed[re.Reason]++
		return
	}
	if t.violation == nil {
		t.violation = fmt.Errorf("read %s failed without a read error: %w", id, err)
	}
}

// ServerSelected implements types.Observer.
func (t *ReadTracker) ServerSelected(context.Context, types.ServerSelectedEvent) {}

// CommandStarted counts the send and checks the per-read limit.
func (t *ReadTracker) CommandStarted(_ context.Context, ev types.CommandStartedEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight[ev.OperationID]++
	if n := t.inflight[ev.OperationID]; n > maxSends && t.violation == nil {
		t.violation = fmt.Errorf("operation %d sent %d times", ev.OperationID, n)
	}

	if first, ok := t.payloads[ev.OperationID]; !ok {
		t.payloads[ev.OperationID] = ev.Payload
	} else if string(first) != string(ev.Payload) && t.violation == nil {
		t.violation = fmt.Errorf("operation %d changed its payload on retry", ev.OperationID)
	}
}

// CommandSucceeded completes the operation.
func (t *ReadTracker) CommandSucceeded(_ context.Context, ev types.CommandSucceededEvent) {
	t.done(ev.OperationID)
}

// CommandFailed implements types.Observer. A failed attempt may be retried,
// so the operation stays in flight.
func (t *ReadTracker) CommandFailed(context.Context, types.CommandFailedEvent) {}

// RetryScheduled counts the retry.
func (t *ReadTracker) RetryScheduled(_ context.Context, _ types.RetryEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.retried++
}

func (t *ReadTracker) done(opID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.inflight, opID)
	delete(t.payloads, opID)
}

// Prune forgets the attempt counts of operations that ended in error.
//
// Failed operations never report completion to the observer, so
// long-running workloads call Prune between phases.
func (t *ReadTracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.inflight)
	clear(t.inflight)
	clear(t.payloads)

	return n
}

// Stats is a snapshot of the tracked outcomes.
type Stats struct {
	Succeeded int
	Retried   int
	Failed    map[types.TerminalReason]int
	Pending   int
}

// Total returns the number of completed reads.
func (s Stats) Total() int {
	n := s.Succeeded
	for _, c := range s.Failed {
		n += c
	}

	return n
}

// Stats returns a snapshot of the tracked outcomes.
func (t *ReadTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	failed := make(map[types.TerminalReason]int, len(t.failed))
	for k, v := range t.failed {
		failed[k] = v
	}

	return Stats{
		Succeeded: t.succeeded,
		Retried:   t.retried,
		Failed:    failed,
		Pending:   len(t.ops),
	}
}

// Count returns the number of completed reads.
func (t *ReadTracker) Count() int {
	return t.Stats().Total()
}

// Verify checks the invariants observed during the run.
func (t *ReadTracker) Verify() error {
	t.mu.Lock()
	violation := t.violation
	t.mu.Unlock()

	if violation != nil {
		return violation
	}

	stats := t.Stats()
	if stats.Total() == 0 {
		return errors.New("no reads tracked")
	}
	if stats.Pending > 0 {
		return fmt.Errorf("%d reads never completed", stats.Pending)
	}

	return nil
}
