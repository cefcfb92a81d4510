// Package testutil provides test utilities and mock implementations for reprise testing.
//
// # Mock Implementations
//
//   - [MockTransport]: In-memory reprise.Transport with failCommand-style fail points
//   - [EventRecorder]: Observer that records every per-attempt event
//   - [TestMetricsCollector]: MetricsCollector that counts calls
//
// # Usage
//
//	transport := testutil.NewMockTransport()
//	transport.SetFailPoint(testutil.FailPoint{
//	    Times:        1,
//	    FailCommands: []string{"find"},
//	    ErrorCode:    10107,
//	})
//
//	view := topology.NewLocal(servers...)
//	client, _ := reprise.NewClient(transport, view)
//
// # Integration Test Helpers
//
//   - StartEmbeddedNATS: Starts an embedded NATS server with JetStream
//   - StartNATSConn: Starts an embedded NATS server and connects to it
package testutil
