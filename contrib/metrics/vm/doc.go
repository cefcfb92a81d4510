// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "reprise":
//
//	collector := vm.New()
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithMetrics(collector),
//	)
//
// # Exposing Metrics
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// # Metrics Provided
//
// Attempts:
//   - {prefix}_read_total{server} - Counter of read attempts
//   - {prefix}_read_errors_total{server,category} - Counter of failed attempts
//   - {prefix}_read_duration_seconds{server} - Histogram of attempt latencies
//
// Retries:
//   - {prefix}_retry_total{from,to} - Counter of retries
//   - {prefix}_retry_success_total - Counter of retries that succeeded
//   - {prefix}_terminal_errors_total{reason} - Counter of failed operations
//
// Selection:
//   - {prefix}_server_selection_failures_total - Counter of selection failures
//   - {prefix}_server_suspect{server} - Gauge (1=suspect, 0=healthy)
//
// Server-scoped metrics are created with GetOrCreate on first use; the
// remaining metrics are pre-created at initialization.
package vm
