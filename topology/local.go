package topology

import (
	"slices"
	"sync"
	"time"

	"github.com/arloliu/reprise/policy"
	"github.com/arloliu/reprise/types"
)

type serverEntry struct {
	desc         types.ServerDescription
	down         bool
	suspectUntil time.Time
}

// Local is an in-memory topology view.
//
// Membership and reachability are set programmatically, which makes it the
// view of choice for tests, demos and deployments with a static server
// list. Suspect hints written by the failover tracker expire on their own.
type Local struct {
	mu      sync.RWMutex
	servers map[types.ServerID]*serverEntry
	order   []types.ServerID
	changed chan struct{}
	closed  bool
	now     func() time.Time
}

var (
	_ policy.ServerSource  = (*Local)(nil)
	_ policy.SuspectMarker = (*Local)(nil)
)

// NewLocal creates a new in-memory topology view.
//
// Parameters:
//   - servers: Initial servers, all reachable
//
// Returns:
//   - *Local: A new local topology instance
func NewLocal(servers ...types.ServerDescription) *Local {
	l := &Local{
		servers: make(map[types.ServerID]*serverEntry, len(servers)),
		changed: make(chan struct{}),
		now:     time.Now,
	}
	for _, desc := range servers {
		l.upsertLocked(desc)
	}

	return l
}

// Servers returns a snapshot of the known servers in insertion order.
func (l *Local) Servers() []types.ServerDescription {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.ServerDescription, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.servers[id].desc)
	}

	return out
}

// ServerState returns the reachability of a server.
//
// Unknown and down servers are Unreachable; servers with an unexpired
// suspect hint are Suspect.
func (l *Local) ServerState(id types.ServerID) types.Reachability {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.servers[id]
	switch {
	case !ok || e.down:
		return types.Unreachable
	case l.now().Before(e.suspectUntil):
		return types.Suspect
	default:
		return types.Reachable
	}
}

// Changed returns a channel that is closed on the next topology change.
func (l *Local) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.changed
}

// Upsert adds a server or replaces its description. The server is
// marked reachable.
//
// Parameters:
//   - desc: The server description
func (l *Local) Upsert(desc types.ServerDescription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.upsertLocked(desc)
	l.notifyLocked()
}

// Replace sets the full membership. Servers not in descs are removed;
// suspect hints of servers that stay are kept.
//
// Parameters:
//   - descs: The new server list
//   - down: Servers in descs that are known to be unreachable
func (l *Local) Replace(descs []types.ServerDescription, down ...types.ServerID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	keep := make(map[types.ServerID]struct{}, len(descs))
	for _, desc := range descs {
		keep[desc.ID] = struct{}{}
		l.upsertLocked(desc)
		l.servers[desc.ID].down = slices.Contains(down, desc.ID)
	}
	for _, id := range slices.Clone(l.order) {
		if _, ok := keep[id]; !ok {
			l.removeLocked(id)
		}
	}
	l.notifyLocked()
}

// Remove deletes a server from the topology.
//
// Parameters:
//   - id: The server to remove
func (l *Local) Remove(id types.ServerID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if _, ok := l.servers[id]; !ok {
		return
	}
	l.removeLocked(id)
	l.notifyLocked()
}

// SetReachable marks a server up or down, as a heartbeat monitor would.
//
// Parameters:
//   - id: The server to update
//   - reachable: false makes the server Unreachable
func (l *Local) SetReachable(id types.ServerID, reachable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.servers[id]
	if l.closed || !ok || e.down == !reachable {
		return
	}
	e.down = !reachable
	l.notifyLocked()
}

// MarkSuspect flags a server as suspect until the given time.
//
// Parameters:
//   - id: The server that failed
//   - until: Expiry of the hint
func (l *Local) MarkSuspect(id types.ServerID, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.servers[id]
	if l.closed || !ok {
		return
	}
	e.suspectUntil = until
	l.notifyLocked()
}

// ClearSuspect removes the suspect flag of a server.
//
// Parameters:
//   - id: The server to clear
func (l *Local) ClearSuspect(id types.ServerID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.servers[id]
	if l.closed || !ok || e.suspectUntil.IsZero() {
		return
	}
	e.suspectUntil = time.Time{}
	l.notifyLocked()
}

// Close stops accepting updates. The last snapshot stays readable.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true

	return nil
}

func (l *Local) upsertLocked(desc types.ServerDescription) {
	if e, ok := l.servers[desc.ID]; ok {
		e.desc = desc
		e.down = false

		return
	}
	l.servers[desc.ID] = &serverEntry{desc: desc}
	l.order = append(l.order, desc.ID)
}

func (l *Local) removeLocked(id types.ServerID) {
	delete(l.servers, id)
	l.order = slices.DeleteFunc(l.order, func(x types.ServerID) bool { return x == id })
}

// notifyLocked wakes every waiter of the current change channel.
func (l *Local) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}
