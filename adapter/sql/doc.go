// Package sql provides a reprise Transport over database/sql read replicas.
//
// Each server id maps to one *sql.DB. The transport executes "sql"
// commands and returns the rows as documents:
//
//	wire.Document{
//	    wire.E("sql", "SELECT id, name FROM users WHERE team = ?"),
//	    wire.E("args", []any{"core"}),
//	}
//
// Reply:
//
//	{rows: [{id: 1, name: "Alice"}, ...], ok: 1}
//
// # Usage
//
//	import (
//	    "database/sql"
//	    _ "github.com/mattn/go-sqlite3"
//	    sqladapter "github.com/arloliu/reprise/adapter/sql"
//	)
//
//	transport := sqladapter.NewTransport()
//	replicaA, _ := sql.Open("postgres", "postgres://replica-a:5432/app")
//	replicaB, _ := sql.Open("postgres", "postgres://replica-b:5432/app")
//	transport.Register("replica-a:5432", sqladapter.WrapDB(replicaA))
//	transport.Register("replica-b:5432", sqladapter.WrapDB(replicaB))
//
//	client, _ := reprise.NewClient(transport, view,
//	    reprise.WithEligibility(policy.EligibleCommands(sqladapter.CommandName)),
//	)
//
// # Error Mapping
//
// Broken connections (driver.ErrBadConn, sql.ErrConnDone, net errors) and
// context errors are reported as *types.NetworkError so the read can be
// retried on another replica. A connection lost after rows were read
// carries the row count in BytesRead and is never retried. Other driver
// errors are passed through WithErrorMapper, if set, and otherwise returned
// as is.
package sql
