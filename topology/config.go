package topology

import (
	"time"

	"github.com/arloliu/reprise/types"
)

// ServerEntry is one server in the list stored in NATS KV or in a
// static configuration file.
type ServerEntry struct {
	// ID is the server address, e.g. "db-1:27017".
	ID types.ServerID `json:"id" yaml:"id"`

	// Type is the server role: "RSPrimary", "RSSecondary", "Mongos", ...
	Type types.ServerType `json:"type" yaml:"type"`

	// RTTMillis is the measured round trip time in milliseconds.
	RTTMillis float64 `json:"rttMs,omitempty" yaml:"rttMs,omitempty"`

	// Tags are the server's replica set tags.
	Tags types.TagSet `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Down marks a member the monitor currently cannot reach.
	Down bool `json:"down,omitempty" yaml:"down,omitempty"`
}

// Description converts the entry to a server description.
func (e ServerEntry) Description() types.ServerDescription {
	return types.ServerDescription{
		ID:   e.ID,
		Type: e.Type,
		RTT:  time.Duration(e.RTTMillis * float64(time.Millisecond)),
		Tags: e.Tags,
	}
}

// ServerList represents the topology stored in NATS KV.
//
// This is the JSON structure that the topology monitor PUTs to the KV
// store whenever membership or roles change.
type ServerList struct {
	// Servers lists every known member.
	Servers []ServerEntry `json:"servers"`

	// Source names the monitor that wrote the list, for diagnostics.
	Source string `json:"source,omitempty"`
}

// WatcherConfig holds configuration for topology watchers.
type WatcherConfig struct {
	// Key is the NATS KV key holding the server list.
	// Default: "reprise.topology.servers"
	Key string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// InitialFetchTimeout is the timeout for the initial KV fetch.
	// Default: 10 seconds
	InitialFetchTimeout time.Duration

	// Logger receives watch errors and membership changes.
	// Default: no-op
	Logger types.Logger
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:                 "reprise.topology.servers",
		PollInterval:        5 * time.Second,
		InitialFetchTimeout: 10 * time.Second,
	}
}

// WatcherOption configures a topology watcher.
type WatcherOption func(*WatcherConfig)

// WithKey sets the NATS KV key to watch.
//
// Parameters:
//   - key: The key name (e.g., "orders.topology")
//
// Returns:
//   - WatcherOption: Configuration option
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher falls back to
// polling at this interval.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithInitialFetchTimeout sets the timeout for the initial KV fetch.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithInitialFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.InitialFetchTimeout = d
	}
}

// WithLogger sets the watcher logger.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - WatcherOption: Configuration option
func WithLogger(l types.Logger) WatcherOption {
	return func(c *WatcherConfig) {
		c.Logger = l
	}
}
