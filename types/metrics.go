package types

// MetricsCollector defines methods for collecting operational metrics.
//
// Server-scoped methods accept a ServerID parameter for labeling.
// Implementations should be thread-safe as methods may be called concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/reprise/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Read Operations
	// ----------------------

	// IncReadTotal increments the attempt counter of a server.
	IncReadTotal(server ServerID)

	// IncReadError increments the failed attempt counter of a server.
	IncReadError(server ServerID, category ErrorCategory)

	// ObserveReadDuration records an attempt duration in seconds.
	ObserveReadDuration(server ServerID, seconds float64)

	// ----------------------
	// Retry
	// ----------------------

	// IncRetryTotal increments the retry counter.
	// Called when an operation consumes its retry after a failure on from.
	IncRetryTotal(from, to ServerID)

	// IncRetrySuccess increments the counter of retries that succeeded.
	IncRetrySuccess(server ServerID)

	// IncTerminalError increments the counter of operations that failed.
	IncTerminalError(reason TerminalReason)

	// ----------------------
	// Server Selection
	// ----------------------

	// IncServerSelectionFailure increments the selection failure counter.
	IncServerSelectionFailure()

	// SetServerSuspect sets the suspect gauge of a server.
	// Value: 1 if suspect, 0 otherwise.
	SetServerSuspect(server ServerID, suspect bool)
}
