package v1

import (
	"context"

	"github.com/gocql/gocql"

	"github.com/arloliu/reprise/adapter/cql"
)

// Session serves reprise "cql" commands from one gocql session.
//
// The gocql session should be restricted to a single host, for example
// with gocql.WhiteListHostFilter, so the server chosen by the client is the
// one that runs the query.
type Session struct {
	session *gocql.Session
}

var _ cql.Session = (*Session)(nil)

// NewSession wraps a gocql session.
//
// Parameters:
//   - session: A gocql.Session routed to a single host
//
// Returns:
//   - *Session: An adapter implementing cql.Session
func NewSession(session *gocql.Session) *Session {
	return &Session{session: session}
}

// Query prepares a statement.
func (s *Session) Query(stmt string, values ...any) cql.Query {
	return query{q: s.session.Query(stmt, values...)}
}

// Close closes the gocql session.
func (s *Session) Close() {
	s.session.Close()
}

// query carries a gocql query through the builder calls. The driver's
// *gocql.Iter already satisfies cql.Iter.
type query struct {
	q *gocql.Query
}

func (q query) Consistency(c cql.Consistency) cql.Query {
	return query{q: q.q.Consistency(ToGocqlConsistency(c))}
}

func (q query) PageSize(n int) cql.Query {
	return query{q: q.q.PageSize(n)}
}

func (q query) IterContext(ctx context.Context) cql.Iter {
	return q.q.WithContext(ctx).Iter()
}
