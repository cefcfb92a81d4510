package sql

import (
	"context"
	"database/sql"
)

// DB is the part of *sql.DB the transport needs, one per replica.
//
// *sql.DB satisfies it; tests wrap it to inject connection failures.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

var _ DB = (*sql.DB)(nil)

// WrapDB returns db as a DB.
//
// Example:
//
//	db, _ := sql.Open("postgres", replicaDSN)
//	transport.Register("replica-1:5432", sqladapter.WrapDB(db))
func WrapDB(db *sql.DB) DB {
	return db
}
