package cql

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise/policy"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

var errConnLost = errors.New("connection lost")

type fakeRequestError struct {
	code int
	msg  string
}

func (e *fakeRequestError) Code() int       { return e.code }
func (e *fakeRequestError) Message() string { return e.msg }
func (e *fakeRequestError) Error() string   { return e.msg }

type fakeSession struct {
	rows   []map[string]any
	err    error
	closed bool

	stmt        string
	values      []any
	consistency Consistency
	pageSize    int
}

func (s *fakeSession) Query(stmt string, values ...any) Query {
	s.stmt = stmt
	s.values = values

	return &fakeQuery{s: s}
}

func (s *fakeSession) Close() { s.closed = true }

type fakeQuery struct{ s *fakeSession }

func (q *fakeQuery) Consistency(c Consistency) Query {
	q.s.consistency = c
	return q
}

func (q *fakeQuery) PageSize(n int) Query {
	q.s.pageSize = n
	return q
}

func (q *fakeQuery) IterContext(_ context.Context) Iter {
	return &fakeIter{rows: q.s.rows, err: q.s.err}
}

type fakeIter struct {
	rows []map[string]any
	err  error
}

func (i *fakeIter) MapScan(m map[string]any) bool {
	if len(i.rows) == 0 {
		return false
	}
	for k, v := range i.rows[0] {
		m[k] = v
	}
	i.rows = i.rows[1:]

	return true
}

func (i *fakeIter) Close() error { return i.err }

func cqlMessage(t *testing.T, fields ...wire.Element) *wire.Message {
	t.Helper()

	msg, err := wire.NewMessage("shop", append(wire.Document{wire.E(CommandName, "SELECT id, total FROM orders WHERE customer = ?")}, fields...))
	require.NoError(t, err)

	return msg
}

func TestTransport_Send(t *testing.T) {
	s := &fakeSession{rows: []map[string]any{
		{"total": 12.5, "id": int64(1)},
		{"total": 3.0, "id": int64(2)},
	}}
	tr := NewTransport()
	tr.Register("10.0.0.1", s)

	msg := cqlMessage(t,
		wire.E("args", []any{"c-42"}),
		wire.E("consistency", "quorum"),
		wire.E("pageSize", 10),
	)
	reply, err := tr.Send(context.Background(), "10.0.0.1", msg)
	require.NoError(t, err)

	require.Equal(t, "SELECT id, total FROM orders WHERE customer = ?", s.stmt)
	require.Equal(t, []any{"c-42"}, s.values)
	require.Equal(t, Quorum, s.consistency)
	require.Equal(t, 10, s.pageSize)

	v, ok := reply.Document.Lookup("rows")
	require.True(t, ok)
	rows, ok := v.([]wire.Document)
	require.True(t, ok)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, "id", first[0].Key, "row keys are sorted")
	id, _ := first.Int("id")
	require.EqualValues(t, 1, id)
}

func TestTransport_Defaults(t *testing.T) {
	s := &fakeSession{}
	tr := NewTransport(WithDefaultConsistency(LocalQuorum), WithPageSize(100))
	tr.Register("10.0.0.1", s)

	_, err := tr.Send(context.Background(), "10.0.0.1", cqlMessage(t))
	require.NoError(t, err)
	require.Equal(t, LocalQuorum, s.consistency)
	require.Equal(t, 100, s.pageSize)
}

func TestTransport_UnknownServer(t *testing.T) {
	tr := NewTransport()

	_, err := tr.Send(context.Background(), "10.0.0.9", cqlMessage(t))
	require.ErrorIs(t, err, ErrUnknownServer)

	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestTransport_UnknownCommand(t *testing.T) {
	tr := NewTransport()
	tr.Register("10.0.0.1", &fakeSession{})

	msg, err := wire.NewMessage("shop", wire.Document{wire.E("find", "orders")})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), "10.0.0.1", msg)
	var se *types.ServerError
	require.ErrorAs(t, err, &se)
	require.EqualValues(t, 59, se.Code)
}

func TestTransport_BadConsistency(t *testing.T) {
	tr := NewTransport()
	tr.Register("10.0.0.1", &fakeSession{})

	_, err := tr.Send(context.Background(), "10.0.0.1", cqlMessage(t, wire.E("consistency", "MOST")))
	var se *types.ServerError
	require.ErrorAs(t, err, &se)
	require.EqualValues(t, 2, se.Code)
}

func TestTransport_ErrorMapping(t *testing.T) {
	classifier := policy.NewDefaultClassifier()

	tests := []struct {
		name     string
		rows     []map[string]any
		err      error
		category types.ErrorCategory
	}{
		{"unavailable", nil, &fakeRequestError{code: 0x1000, msg: "Cannot achieve consistency level"}, types.NetworkTransient},
		{"read timeout", nil, &fakeRequestError{code: 0x1200, msg: "Operation timed out"}, types.NetworkTransient},
		{"syntax error", nil, &fakeRequestError{code: 0x2000, msg: "line 1:0 no viable alternative"}, types.NonRetryable},
		{"connection lost", nil, errConnLost, types.NetworkTransient},
		{"connection lost after rows", []map[string]any{{"id": int64(1)}}, errConnLost, types.NonRetryable},
		{"deadline", nil, context.DeadlineExceeded, types.NetworkTransient},
		{"unknown", nil, errors.New("marshal: can not marshal"), types.NonRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransport(WithConnectionErrors(func(err error) bool { return errors.Is(err, errConnLost) }))
			tr.Register("10.0.0.1", &fakeSession{rows: tt.rows, err: tt.err})

			_, err := tr.Send(context.Background(), "10.0.0.1", cqlMessage(t))
			require.Error(t, err)
			require.Equal(t, tt.category, classifier.Classify(err))
		})
	}
}

func TestTransport_Close(t *testing.T) {
	s := &fakeSession{}
	tr := NewTransport()
	tr.Register("10.0.0.1", s)

	require.NoError(t, tr.Close())
	require.True(t, s.closed)

	_, err := tr.Send(context.Background(), "10.0.0.1", cqlMessage(t))
	require.ErrorIs(t, err, ErrUnknownServer)
}

func TestParseConsistency(t *testing.T) {
	c, ok := ParseConsistency("local_one")
	require.True(t, ok)
	require.Equal(t, LocalOne, c)
	require.Equal(t, "LOCAL_ONE", c.String())

	_, ok = ParseConsistency("MOST")
	require.False(t, ok)
	require.Equal(t, "UNKNOWN", Consistency(99).String())
}
