// Package metrics provides internal metrics utilities for reprise.
package metrics

import "github.com/arloliu/reprise/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns m, or a NopMetrics when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNopMetrics()
	}

	return m
}

// ----------------------
// Read Operations
// ----------------------

// IncReadTotal discards the metric.
func (m *NopMetrics) IncReadTotal(_ types.ServerID) {}

// IncReadError discards the metric.
func (m *NopMetrics) IncReadError(_ types.ServerID, _ types.ErrorCategory) {}

// ObserveReadDuration discards the metric.
func (m *NopMetrics) ObserveReadDuration(_ types.ServerID, _ float64) {}

// ----------------------
// Retry
// ----------------------

// IncRetryTotal discards the metric.
func (m *NopMetrics) IncRetryTotal(_, _ types.ServerID) {}

// IncRetrySuccess discards the metric.
func (m *NopMetrics) IncRetrySuccess(_ types.ServerID) {}

// IncTerminalError discards the metric.
func (m *NopMetrics) IncTerminalError(_ types.TerminalReason) {}

// ----------------------
// Server Selection
// ----------------------

// IncServerSelectionFailure discards the metric.
func (m *NopMetrics) IncServerSelectionFailure() {}

// SetServerSuspect discards the metric.
func (m *NopMetrics) SetServerSuspect(_ types.ServerID, _ bool) {}
