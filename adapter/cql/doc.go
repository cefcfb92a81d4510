// Package cql provides a reprise Transport over CQL (Cassandra Query
// Language) sessions.
//
// The transport keeps one driver session per server and executes "cql"
// commands on it. Driver errors are mapped so the default classifier can
// decide on a retry: connection failures become *types.NetworkError and
// Unavailable, Overloaded, IsBootstrapping and ReadTimeout become server
// errors labelled RetryableReadError.
//
// # Interfaces
//
//   - Session: Wraps a driver session routed to a single host
//   - Query: A CQL query with bind parameters
//   - Iter: Iterates over query results
//
// # Adapters
//
// Driver-specific adapters are provided in subpackages:
//
//   - [github.com/arloliu/reprise/adapter/cql/v1]: Adapter for gocql v1.x
//   - [github.com/arloliu/reprise/adapter/cql/v2]: Adapter for apache/cassandra-gocql-driver v2.x
//
// # Usage
//
//	transport := cql.NewTransport(cql.WithConnectionErrors(v1.IsConnectionError))
//	transport.Register("10.0.0.1", v1.NewSession(sessionA))
//	transport.Register("10.0.0.2", v1.NewSession(sessionB))
//
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithEligibility(policy.EligibleCommands(cql.CommandName)),
//	)
//
//	reply, err := client.Command("shop", wire.Document{
//	    wire.E("cql", "SELECT * FROM orders WHERE id = ?"),
//	    wire.E("args", []any{42}),
//	}).ReadPreference(reprise.ReadPreference{Mode: reprise.Nearest}).ExecContext(ctx)
package cql
