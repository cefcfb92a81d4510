// Package integration_test provides end-to-end tests for reprise over NATS.
//
// Every test starts an embedded NATS server with JetStream. The topology is
// published to a KV bucket and watched by topology.NATS, and each server is
// a responder reached through the NATS transport.
//
// # Running Integration Tests
//
// Integration tests are skipped when using -short:
//
//	go test -short ./...           # Skips integration tests
//	go test ./test/integration/... # Runs integration tests
package integration_test
