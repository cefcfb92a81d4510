package v1

import (
	"errors"

	"github.com/gocql/gocql"

	"github.com/arloliu/reprise/adapter/cql"
)

// ToGocqlConsistency converts a cql.Consistency to gocql.Consistency.
//
// Parameters:
//   - c: Consistency level
//
// Returns:
//   - gocql.Consistency: The equivalent gocql consistency level
//
// Example:
//
//	cluster := gocql.NewCluster("127.0.0.1")
//	cluster.Consistency = v1.ToGocqlConsistency(cql.LocalQuorum)
func ToGocqlConsistency(c cql.Consistency) gocql.Consistency {
	return gocql.Consistency(c)
}

// FromGocqlConsistency converts a gocql.Consistency to cql.Consistency.
func FromGocqlConsistency(c gocql.Consistency) cql.Consistency {
	return cql.Consistency(c)
}

// IsConnectionError reports whether err means the host could not be used,
// as opposed to the host answering with an error.
//
// Pass it to cql.WithConnectionErrors so these failures are retried on
// another server.
func IsConnectionError(err error) bool {
	return errors.Is(err, gocql.ErrNoConnections) ||
		errors.Is(err, gocql.ErrConnectionClosed) ||
		errors.Is(err, gocql.ErrTimeoutNoResponse)
}

// UnwrapSession returns the underlying gocql.Session from a Session adapter.
//
// Parameters:
//   - s: v1 Session adapter
//
// Returns:
//   - *gocql.Session: The underlying gocql session
func UnwrapSession(s *Session) *gocql.Session {
	return s.session
}
