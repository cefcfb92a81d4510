package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/reprise/internal/logging"
	"github.com/arloliu/reprise/policy"
	"github.com/arloliu/reprise/types"
)

// NATS is a topology view fed by a server list stored in a NATS KV bucket.
//
// An external topology monitor owns the list and PUTs it as JSON (see
// ServerList). NATS watches the key and mirrors it into a Local view, so
// suspect hints from the failover tracker stay process-local and are never
// written back to the bucket.
//
// Start should be called once per instance; the watch stops when Close is
// called or the context is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig
	logger types.Logger
	view   *Local

	mu        sync.Mutex
	started   bool
	closed    bool
	done      chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	revision  uint64
}

var (
	_ policy.ServerSource  = (*NATS)(nil)
	_ policy.SuspectMarker = (*NATS)(nil)
)

// NewNATS creates a new NATS KV topology view.
//
// The view is empty until Start fetches the server list.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new view
//   - error: Error if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "reprise-config")
//
//	view, _ := topology.NewNATS(kv,
//	    topology.WithKey("orders.topology"),
//	    topology.WithPollInterval(10*time.Second),
//	)
//	view.Start(ctx)
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("reprise/topology: KeyValue store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:     kv,
		config: config,
		logger: logging.OrNop(config.Logger),
		view:   NewLocal(),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}, nil
}

// Start begins watching the KV key in a background goroutine.
//
// Subsequent calls are no-ops; only the first call's context controls the
// watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation
func (n *NATS) Start(ctx context.Context) {
	n.mu.Lock()
	if n.started || n.closed {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	go n.watchLoop(ctx)
}

// Ready returns a channel closed once the first fetch completed,
// successfully or not.
func (n *NATS) Ready() <-chan struct{} {
	return n.ready
}

// Close stops the watcher and releases resources.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	n.closed = true
	close(n.done)

	return n.view.Close()
}

// Config returns the watcher configuration.
//
// Returns:
//   - WatcherConfig: The current watcher configuration
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// Servers returns a snapshot of the known servers.
func (n *NATS) Servers() []types.ServerDescription {
	return n.view.Servers()
}

// ServerState returns the reachability of a server.
func (n *NATS) ServerState(id types.ServerID) types.Reachability {
	return n.view.ServerState(id)
}

// Changed returns a channel that is closed on the next topology change.
func (n *NATS) Changed() <-chan struct{} {
	return n.view.Changed()
}

// MarkSuspect flags a server as suspect locally until the given time.
func (n *NATS) MarkSuspect(id types.ServerID, until time.Time) {
	n.view.MarkSuspect(id, until)
}

// ClearSuspect removes the local suspect flag of a server.
func (n *NATS) ClearSuspect(id types.ServerID) {
	n.view.ClearSuspect(id)
}

// PutServers publishes a server list to the KV key, as a topology monitor does.
//
// Parameters:
//   - ctx: Context for cancellation
//   - kv: The KeyValue store
//   - key: The key to write
//   - list: The server list
//
// Returns:
//   - uint64: Revision of the written entry
//   - error: Encoding or KV error
func PutServers(ctx context.Context, kv jetstream.KeyValue, key string, list ServerList) (uint64, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return 0, fmt.Errorf("reprise/topology: failed to encode server list: %w", err)
	}

	rev, err := kv.Put(ctx, key, data)
	if err != nil {
		return 0, fmt.Errorf("reprise/topology: failed to put server list: %w", err)
	}

	return rev, nil
}

// watchLoop is the main watch loop that monitors the NATS KV key.
func (n *NATS) watchLoop(ctx context.Context) {
	n.fetch(ctx)
	n.readyOnce.Do(func() { close(n.ready) })

	watcher, err := n.kv.Watch(ctx, n.config.Key)
	if err != nil {
		n.logger.Warn("topology watch failed, falling back to polling",
			"key", n.config.Key,
			"error", err,
		)
		n.pollLoop(ctx)

		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.pollLoop(ctx)
				return
			}
			if entry == nil {
				// End of initial values
				continue
			}
			n.processEntry(entry)
		}
	}
}

// pollLoop is a fallback polling loop when watch fails.
func (n *NATS) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.fetch(ctx)
		}
	}
}

// fetch reads the current KV value and applies it.
func (n *NATS) fetch(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.InitialFetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			n.logger.Warn("topology fetch failed", "key", n.config.Key, "error", err)
		}

		return
	}

	n.processEntry(entry)
}

// processEntry parses a KV entry and applies the server list.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	n.mu.Lock()
	if entry.Revision() != 0 && entry.Revision() <= n.revision {
		n.mu.Unlock()
		return
	}
	n.revision = entry.Revision()
	n.mu.Unlock()

	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.logger.Warn("topology key deleted, no servers known", "key", n.config.Key)
		n.view.Replace(nil)

		return
	}

	var list ServerList
	if err := json.Unmarshal(entry.Value(), &list); err != nil {
		// Keep the last known list
		n.logger.Error("invalid topology entry", "key", n.config.Key, "error", err)
		return
	}

	descs := make([]types.ServerDescription, 0, len(list.Servers))
	var down []types.ServerID
	for _, e := range list.Servers {
		descs = append(descs, e.Description())
		if e.Down {
			down = append(down, e.ID)
		}
	}
	n.view.Replace(descs, down...)

	n.logger.Debug("topology updated",
		"key", n.config.Key,
		"servers", len(descs),
		"revision", entry.Revision(),
	)
}
