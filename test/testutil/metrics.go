package testutil

import (
	"sync"

	"github.com/arloliu/reprise/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Read operations
	ReadTotal    map[types.ServerID]int64
	ReadErrors   map[types.ServerID]int64
	ReadDuration map[types.ServerID][]float64

	// Retry
	RetryTotal     map[string]int64 // key: "from->to"
	RetrySuccess   map[types.ServerID]int64
	TerminalErrors map[types.TerminalReason]int64

	// Server selection
	SelectionFailures int64
	ServerSuspect     map[types.ServerID]bool
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		ReadTotal:      make(map[types.ServerID]int64),
		ReadErrors:     make(map[types.ServerID]int64),
		ReadDuration:   make(map[types.ServerID][]float64),
		RetryTotal:     make(map[string]int64),
		RetrySuccess:   make(map[types.ServerID]int64),
		TerminalErrors: make(map[types.TerminalReason]int64),
		ServerSuspect:  make(map[types.ServerID]bool),
	}
}

// ----------------------
// Read Operations
// ----------------------

func (m *TestMetricsCollector) IncReadTotal(server types.ServerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadTotal[server]++
}

func (m *TestMetricsCollector) IncReadError(server types.ServerID, _ types.ErrorCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadErrors[server]++
}

func (m *TestMetricsCollector) ObserveReadDuration(server types.ServerID, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadDuration[server] = append(m.ReadDuration[server], seconds)
}

// ----------------------
// Retry
// ----------------------

func (m *TestMetricsCollector) IncRetryTotal(from, to types.ServerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetryTotal[string(from)+"->"+string(to)]++
}

func (m *TestMetricsCollector) IncRetrySuccess(server types.ServerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetrySuccess[server]++
}

func (m *TestMetricsCollector) IncTerminalError(reason types.TerminalReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TerminalErrors[reason]++
}

// ----------------------
// Server Selection
// ----------------------

func (m *TestMetricsCollector) IncServerSelectionFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SelectionFailures++
}

func (m *TestMetricsCollector) SetServerSuspect(server types.ServerID, suspect bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ServerSuspect[server] = suspect
}

// ----------------------
// Helper methods
// ----------------------

// GetReadTotal returns the read count for a server.
func (m *TestMetricsCollector) GetReadTotal(server types.ServerID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ReadTotal[server]
}

// GetRetryTotal returns the number of retries from one server to another.
func (m *TestMetricsCollector) GetRetryTotal(from, to types.ServerID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.RetryTotal[string(from)+"->"+string(to)]
}

// GetRetries returns the total number of retries.
func (m *TestMetricsCollector) GetRetries() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, v := range m.RetryTotal {
		n += v
	}

	return n
}

// GetTerminalErrors returns the number of terminal errors with the given reason.
func (m *TestMetricsCollector) GetTerminalErrors(reason types.TerminalReason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.TerminalErrors[reason]
}

// GetSelectionFailures returns the number of selection failures.
func (m *TestMetricsCollector) GetSelectionFailures() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.SelectionFailures
}

// IsSuspect returns the last suspect gauge value of a server.
func (m *TestMetricsCollector) IsSuspect(server types.ServerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ServerSuspect[server]
}
