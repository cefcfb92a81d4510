package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a pooled session id may stay unused
// before it is discarded.
const DefaultIdleTimeout = 30 * time.Minute

type pooledID struct {
	id       uuid.UUID
	returned time.Time
}

// Pool recycles session ids for implicit sessions.
//
// Ids are reused most-recently-returned first, so a small set of server
// sessions stays warm. Ids idle for longer than the idle timeout are dropped.
type Pool struct {
	idleTimeout time.Duration
	now         func() time.Time

	mu  sync.Mutex
	ids []pooledID
}

// NewPool creates a session pool.
//
// Parameters:
//   - idleTimeout: Maximum idle time of a pooled id; <= 0 uses DefaultIdleTimeout
//
// Returns:
//   - *Pool: A new pool
func NewPool(idleTimeout time.Duration) *Pool {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	return &Pool{
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Implicit returns an implicit session, reusing a pooled id when one is fresh.
// Implicit sessions are never causally consistent.
func (p *Pool) Implicit() *Session {
	return &Session{
		id:   p.get(),
		pool: p,
	}
}

// Len returns the number of pooled ids.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.ids)
}

func (p *Pool) get() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for len(p.ids) > 0 {
		last := p.ids[len(p.ids)-1]
		p.ids = p.ids[:len(p.ids)-1]
		if now.Sub(last.returned) < p.idleTimeout {
			return last.id
		}
	}

	return uuid.New()
}

func (p *Pool) put(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	// Drop expired ids from the bottom of the stack
	cut := 0
	for cut < len(p.ids) && now.Sub(p.ids[cut].returned) >= p.idleTimeout {
		cut++
	}
	p.ids = append(p.ids[cut:], pooledID{id: id, returned: now})
}
