package integration_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise"
	natsadapter "github.com/arloliu/reprise/adapter/nats"
	"github.com/arloliu/reprise/test/testutil"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

const (
	subjectPrefix = "it.db"
	topologyKey   = "it.topology"
)

var bucketSeq atomic.Int64

// cluster is a set of NATS responders whose membership lives in NATS KV.
type cluster struct {
	t         *testing.T
	nc        *nats.Conn
	kv        jetstream.KeyValue
	view      *topology.NATS
	transport *natsadapter.Transport

	mu       sync.Mutex
	served   []types.ServerID
	failing  map[types.ServerID]*types.ServerError
	blocked  map[types.ServerID]bool
	failNext int
	failErr  *types.ServerError
}

// startCluster publishes entries and starts a responder for each of them,
// except the ids listed in silent.
func startCluster(t *testing.T, entries []topology.ServerEntry, silent ...types.ServerID) *cluster {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	nc := testutil.StartNATSConn(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx := t.Context()
	kv, err := js.CreateKeyValue(ctx, testutil.CreateKVConfig(fmt.Sprintf("it-%d", bucketSeq.Add(1))))
	require.NoError(t, err)

	c := &cluster{
		t:       t,
		nc:      nc,
		kv:      kv,
		failing: make(map[types.ServerID]*types.ServerError),
		blocked: make(map[types.ServerID]bool),
	}

	c.publish(entries...)

	c.view, err = topology.NewNATS(kv, topology.WithKey(topologyKey), topology.WithPollInterval(100*time.Millisecond))
	require.NoError(t, err)
	c.view.Start(ctx)
	t.Cleanup(func() { _ = c.view.Close() })

	select {
	case <-c.view.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("topology not ready")
	}
	require.Len(t, c.view.Servers(), len(entries))

	for _, e := range entries {
		if slices.Contains(silent, e.ID) {
			continue
		}
		c.serve(e.ID)
	}
	require.NoError(t, nc.Flush())

	c.transport, err = natsadapter.NewTransport(nc,
		natsadapter.WithSubjectPrefix(subjectPrefix),
		natsadapter.WithRequestTimeout(2*time.Second),
	)
	require.NoError(t, err)

	return c
}

func (c *cluster) serve(id types.ServerID) {
	r, err := natsadapter.Serve(c.nc, subjectPrefix, id, func(_ context.Context, db string, cmd wire.Document) (wire.Document, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.served = append(c.served, id)
		if c.blocked[id] {
			return nil, natsadapter.ErrNoReply
		}
		if se := c.failing[id]; se != nil {
			return nil, se
		}
		if c.failNext > 0 {
			c.failNext--
			return nil, c.failErr
		}

		switch cmd.Name() {
		case "count":
			return wire.OK(wire.E("n", int64(2)), wire.E("server", string(id))), nil
		default:
			coll, _ := cmd.String(cmd.Name())
			return wire.OK(wire.E("cursor", wire.Document{
				wire.E("firstBatch", []wire.Document{{wire.E("_id", int64(1))}}),
				wire.E("id", int64(0)),
				wire.E("ns", db+"."+coll),
			}), wire.E("server", string(id))), nil
		}
	})
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = r.Stop() })
}

// publish writes a new server list to the KV key.
func (c *cluster) publish(entries ...topology.ServerEntry) uint64 {
	c.t.Helper()

	rev, err := topology.PutServers(context.Background(), c.kv, topologyKey, topology.ServerList{
		Servers: entries,
		Source:  "integration-test",
	})
	require.NoError(c.t, err)

	return rev
}

// publishAndWait writes a server list and waits until the view applies it.
func (c *cluster) publishAndWait(cond func() bool, entries ...topology.ServerEntry) {
	c.t.Helper()

	c.publish(entries...)
	require.Eventually(c.t, cond, 5*time.Second, 20*time.Millisecond)
}

func (c *cluster) client(opts ...reprise.Option) *reprise.Client {
	c.t.Helper()

	opts = append([]reprise.Option{reprise.WithServerSelectionTimeout(300 * time.Millisecond)}, opts...)
	client, err := reprise.NewClient(c.transport, c.view, opts...)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = client.Close() })

	return client
}

// failAlways makes a server answer every command with se, or clears it when nil.
func (c *cluster) failAlways(id types.ServerID, se *types.ServerError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if se == nil {
		delete(c.failing, id)
		return
	}
	c.failing[id] = se
}

// failFirst makes the next n commands fail with se, whichever server gets them.
func (c *cluster) failFirst(n int, se *types.ServerError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failNext = n
	c.failErr = se
}

func (c *cluster) block(id types.ServerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocked[id] = true
}

func (c *cluster) servedBy() []types.ServerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.served)
}

func (c *cluster) resetServed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.served = nil
}

func countCmd() wire.Document {
	return wire.Document{wire.E("count", "orders"), wire.E("query", wire.Document{wire.E("status", "open")})}
}

func replyServer(t *testing.T, reply *wire.Reply) types.ServerID {
	t.Helper()

	s, ok := reply.Document.String("server")
	require.True(t, ok)

	return types.ServerID(s)
}

func replicaSet() []topology.ServerEntry {
	return []topology.ServerEntry{
		{ID: "db-1:27017", Type: types.ServerRSPrimary, RTTMillis: 1},
		{ID: "db-2:27017", Type: types.ServerRSSecondary, RTTMillis: 1, Tags: types.TagSet{"dc": "east"}},
		{ID: "db-3:27017", Type: types.ServerRSSecondary, RTTMillis: 1, Tags: types.TagSet{"dc": "west"}},
	}
}
