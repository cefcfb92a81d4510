package chaos

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// ErrConnectionDropped is the cause of the network error returned for a
// dropped send.
var ErrConnectionDropped = errors.New("chaos: connection dropped")

// ServerConfig holds the chaos configuration of one server.
type ServerConfig struct {
	Latency   time.Duration // Added before every send
	DropRate  float64       // 0.0-1.0 probability to fail with a network error
	ErrorRate float64       // 0.0-1.0 probability to fail with Error
	Error     *types.ServerError
}

// Transport wraps a reprise.Transport to inject failures per server.
type Transport struct {
	wrapped reprise.Transport

	mu      sync.RWMutex
	servers map[types.ServerID]*atomic.Pointer[ServerConfig]

	rngMu sync.Mutex
	rng   *rand.Rand

	sends    atomic.Int64
	injected atomic.Int64
}

// Compile-time assertion that Transport implements reprise.Transport.
var _ reprise.Transport = (*Transport)(nil)

// NewTransport creates a chaos transport with no failures configured.
func NewTransport(wrapped reprise.Transport, seed uint64) *Transport {
	return &Transport{
		wrapped: wrapped,
		servers: make(map[types.ServerID]*atomic.Pointer[ServerConfig]),
		//nolint:gosec // Simulation data, not security sensitive
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetConfig replaces the chaos configuration of a server.
func (t *Transport) SetConfig(server types.ServerID, cfg ServerConfig) {
	t.slot(server).Store(&cfg)
}

// SetErrorRate makes a fraction of the sends to server fail with se.
func (t *Transport) SetErrorRate(server types.ServerID, rate float64, se *types.ServerError) {
	cfg := t.config(server)
	cfg.ErrorRate = rate
	cfg.Error = se
	t.SetConfig(server, cfg)
}

// SetDropRate makes a fraction of the sends to server fail with a network error.
func (t *Transport) SetDropRate(server types.ServerID, rate float64) {
	cfg := t.config(server)
	cfg.DropRate = rate
	t.SetConfig(server, cfg)
}

// SetLatency delays every send to server.
func (t *Transport) SetLatency(server types.ServerID, d time.Duration) {
	cfg := t.config(server)
	cfg.Latency = d
	t.SetConfig(server, cfg)
}

// Reset clears the chaos configuration of every server.
func (t *Transport) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, p := range t.servers {
		p.Store(nil)
	}
}

// Sends returns the number of sends seen.
func (t *Transport) Sends() int64 {
	return t.sends.Load()
}

// Injected returns the number of sends failed on purpose.
func (t *Transport) Injected() int64 {
	return t.injected.Load()
}

// Send applies the server's chaos configuration, then forwards the send.
func (t *Transport) Send(ctx context.Context, server types.ServerID, msg *wire.Message) (*wire.Reply, error) {
	t.sends.Add(1)

	cfg := t.slot(server).Load()
	if cfg == nil {
		return t.wrapped.Send(ctx, server, msg)
	}

	if cfg.Latency > 0 {
		timer := time.NewTimer(cfg.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &types.NetworkError{Server: server, Cause: ctx.Err()}
		case <-timer.C:
		}
	}
	if cfg.DropRate > 0 && t.roll() < cfg.DropRate {
		t.injected.Add(1)
		return nil, &types.NetworkError{Server: server, Cause: ErrConnectionDropped}
	}
	if cfg.Error != nil && cfg.ErrorRate > 0 && t.roll() < cfg.ErrorRate {
		t.injected.Add(1)
		se := *cfg.Error

		return nil, &se
	}

	return t.wrapped.Send(ctx, server, msg)
}

func (t *Transport) config(server types.ServerID) ServerConfig {
	if cfg := t.slot(server).Load(); cfg != nil {
		return *cfg
	}

	return ServerConfig{}
}

func (t *Transport) slot(server types.ServerID) *atomic.Pointer[ServerConfig] {
	t.mu.RLock()
	p, ok := t.servers[server]
	t.mu.RUnlock()
	if ok {
		return p
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok = t.servers[server]; !ok {
		p = &atomic.Pointer[ServerConfig]{}
		t.servers[server] = p
	}

	return p
}

func (t *Transport) roll() float64 {
	t.rngMu.Lock()
	defer t.rngMu.Unlock()

	return t.rng.Float64()
}
