// Package cql provides a reprise transport over CQL sessions.
package cql

import (
	"context"
	"strings"
)

// Consistency is a CQL consistency level. Values match the native protocol.
type Consistency uint16

// Consistency levels.
const (
	Any         Consistency = 0x00
	One         Consistency = 0x01
	Two         Consistency = 0x02
	Three       Consistency = 0x03
	Quorum      Consistency = 0x04
	All         Consistency = 0x05
	LocalQuorum Consistency = 0x06
	EachQuorum  Consistency = 0x07
	Serial      Consistency = 0x08
	LocalSerial Consistency = 0x09
	LocalOne    Consistency = 0x0A
)

var consistencyNames = map[Consistency]string{
	Any:         "ANY",
	One:         "ONE",
	Two:         "TWO",
	Three:       "THREE",
	Quorum:      "QUORUM",
	All:         "ALL",
	LocalQuorum: "LOCAL_QUORUM",
	EachQuorum:  "EACH_QUORUM",
	Serial:      "SERIAL",
	LocalSerial: "LOCAL_SERIAL",
	LocalOne:    "LOCAL_ONE",
}

// String returns the protocol name of the level.
func (c Consistency) String() string {
	if name, ok := consistencyNames[c]; ok {
		return name
	}

	return "UNKNOWN"
}

// ParseConsistency parses a level name such as "LOCAL_ONE", case-insensitively.
func ParseConsistency(s string) (Consistency, bool) {
	for c, name := range consistencyNames {
		if strings.EqualFold(name, s) {
			return c, true
		}
	}

	return 0, false
}

// Session represents a raw CQL session from the underlying driver.
//
// This interface is implemented by adapters for gocql v1 and v2. One
// session is registered per server; the session is expected to route every
// query to that server.
type Session interface {
	// Query creates a new query for the given statement.
	//
	// Parameters:
	//   - stmt: CQL statement with ? placeholders
	//   - values: Values to bind to placeholders
	//
	// Returns:
	//   - Query: A query builder
	Query(stmt string, values ...any) Query

	// Close terminates the session.
	Close()
}

// Query represents a raw CQL query from the underlying driver.
type Query interface {
	// Consistency sets the consistency level.
	Consistency(c Consistency) Query

	// PageSize sets the page size.
	PageSize(n int) Query

	// IterContext executes the query and returns an iterator.
	IterContext(ctx context.Context) Iter
}

// Iter represents a raw CQL iterator from the underlying driver.
type Iter interface {
	// MapScan scans the next row into a map keyed by column name.
	MapScan(m map[string]any) bool

	// Close closes the iterator and returns any error from the query.
	Close() error
}

// RequestError is implemented by driver errors carrying a protocol error code.
type RequestError interface {
	Code() int
	Message() string
	Error() string
}
