package nats_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise"
	natsadapter "github.com/arloliu/reprise/adapter/nats"
	"github.com/arloliu/reprise/policy"
	"github.com/arloliu/reprise/test/testutil"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

const prefix = "test.db"

func countMessage(t *testing.T) *wire.Message {
	t.Helper()

	msg, err := wire.NewMessage("app", wire.Document{wire.E("count", "orders")})
	require.NoError(t, err)

	return msg
}

func newTransport(t *testing.T, nc *nats.Conn, opts ...natsadapter.Option) *natsadapter.Transport {
	t.Helper()

	tr, err := natsadapter.NewTransport(nc, append([]natsadapter.Option{natsadapter.WithSubjectPrefix(prefix)}, opts...)...)
	require.NoError(t, err)

	return tr
}

func serve(t *testing.T, nc *nats.Conn, server types.ServerID, fn natsadapter.Handler) {
	t.Helper()

	r, err := natsadapter.Serve(nc, prefix, server, fn)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	t.Cleanup(func() { _ = r.Stop() })
}

func TestSubject(t *testing.T) {
	require.Equal(t, "db.replica-1", natsadapter.Subject("db", "replica-1"))
	require.Equal(t, "db.10_0_0_1:27017", natsadapter.Subject("db", "10.0.0.1:27017"))
	require.Equal(t, "db.a_b", natsadapter.Subject("db", "a*b"))
}

func TestNewTransport_NilConn(t *testing.T) {
	_, err := natsadapter.NewTransport(nil)
	require.ErrorIs(t, err, natsadapter.ErrNilConn)

	_, err = natsadapter.Serve(nil, prefix, "a", nil)
	require.ErrorIs(t, err, natsadapter.ErrNilConn)
}

func TestTransport_Send(t *testing.T) {
	nc := testutil.StartNATSConn(t)

	var gotDB string
	var gotCmd wire.Document
	serve(t, nc, "10.0.0.1:27017", func(_ context.Context, db string, cmd wire.Document) (wire.Document, error) {
		gotDB, gotCmd = db, cmd
		return wire.OK(wire.E("n", 2)), nil
	})

	tr := newTransport(t, nc)
	reply, err := tr.Send(t.Context(), "10.0.0.1:27017", countMessage(t))
	require.NoError(t, err)

	n, ok := reply.Document.Int("n")
	require.True(t, ok)
	require.EqualValues(t, 2, n)
	require.NotEmpty(t, reply.Raw)

	require.Equal(t, "app", gotDB)
	require.Equal(t, "count", gotCmd.Name())
}

func TestTransport_ServerError(t *testing.T) {
	nc := testutil.StartNATSConn(t)
	serve(t, nc, "a", func(context.Context, string, wire.Document) (wire.Document, error) {
		return nil, &types.ServerError{Code: 10107, CodeName: "NotWritablePrimary", Message: "not primary"}
	})

	_, err := newTransport(t, nc).Send(t.Context(), "a", countMessage(t))
	var se *types.ServerError
	require.ErrorAs(t, err, &se)
	require.EqualValues(t, 10107, se.Code)
	require.Equal(t, "NotWritablePrimary", se.CodeName)
	require.Equal(t, types.NotPrimary, policy.NewDefaultClassifier().Classify(err))
}

func TestTransport_HandlerError(t *testing.T) {
	nc := testutil.StartNATSConn(t)
	serve(t, nc, "a", func(context.Context, string, wire.Document) (wire.Document, error) {
		return nil, context.Canceled
	})

	_, err := newTransport(t, nc).Send(t.Context(), "a", countMessage(t))
	var se *types.ServerError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "InternalError", se.CodeName)
}

func TestTransport_NoResponders(t *testing.T) {
	nc := testutil.StartNATSConn(t)

	_, err := newTransport(t, nc).Send(t.Context(), "missing", countMessage(t))
	require.ErrorIs(t, err, nats.ErrNoResponders)

	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, types.ServerID("missing"), netErr.Server)
	require.Equal(t, types.NetworkTransient, policy.NewDefaultClassifier().Classify(err))
}

func TestTransport_Timeout(t *testing.T) {
	nc := testutil.StartNATSConn(t)
	serve(t, nc, "a", func(context.Context, string, wire.Document) (wire.Document, error) {
		return nil, natsadapter.ErrNoReply
	})

	tr := newTransport(t, nc, natsadapter.WithRequestTimeout(50*time.Millisecond))
	_, err := tr.Send(context.Background(), "a", countMessage(t))

	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Zero(t, netErr.BytesRead)
	require.Equal(t, types.NetworkTransient, policy.NewDefaultClassifier().Classify(err))
}

func TestTransport_MalformedReply(t *testing.T) {
	nc := testutil.StartNATSConn(t)
	sub, err := nc.Subscribe(natsadapter.Subject(prefix, "a"), func(m *nats.Msg) {
		_ = m.Respond([]byte{0xc1, 0x00, 0x01})
	})
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	defer func() { _ = sub.Unsubscribe() }()

	_, err = newTransport(t, nc).Send(t.Context(), "a", countMessage(t))

	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, 3, netErr.BytesRead)
	require.Equal(t, types.NonRetryable, policy.NewDefaultClassifier().Classify(err))
}

func TestClient_RetriesOverNATS(t *testing.T) {
	nc := testutil.StartNATSConn(t)

	var failures atomic.Int32
	failures.Store(1)
	var mu sync.Mutex
	var served []types.ServerID

	for _, id := range []types.ServerID{"node-a", "node-b"} {
		serve(t, nc, id, func(_ context.Context, _ string, _ wire.Document) (wire.Document, error) {
			mu.Lock()
			served = append(served, id)
			mu.Unlock()

			if failures.Add(-1) >= 0 {
				return nil, &types.ServerError{Code: 91, CodeName: "ShutdownInProgress", Message: "shutting down"}
			}

			return wire.OK(wire.E("n", 2)), nil
		})
	}

	view := topology.NewLocal(
		types.ServerDescription{ID: "node-a", Type: types.ServerRSSecondary},
		types.ServerDescription{ID: "node-b", Type: types.ServerRSSecondary},
	)
	client, err := reprise.NewClient(newTransport(t, nc), view,
		reprise.WithReadPreference(reprise.ReadPreference{Mode: reprise.Secondary}),
		reprise.WithServerSelectionTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer client.Close()

	reply, err := client.Command("app", wire.Document{wire.E("count", "orders")}).ExecContext(t.Context())
	require.NoError(t, err)

	n, _ := reply.Document.Int("n")
	require.EqualValues(t, 2, n)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, served, 2)
	require.NotEqual(t, served[0], served[1])
}
