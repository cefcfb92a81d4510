package topology_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise/test/testutil"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
)

const testKey = "reprise.topology.servers"

// createTestKV creates a test KV bucket.
func createTestKV(t *testing.T, js jetstream.JetStream, bucket string) jetstream.KeyValue {
	t.Helper()

	kv, err := js.CreateKeyValue(t.Context(), testutil.CreateKVConfig(bucket))
	require.NoError(t, err)

	return kv
}

func startView(t *testing.T, kv jetstream.KeyValue, opts ...topology.WatcherOption) *topology.NATS {
	t.Helper()

	view, err := topology.NewNATS(kv, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = view.Close() })

	view.Start(t.Context())
	select {
	case <-view.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for initial fetch")
	}

	return view
}

func serverIDs(view *topology.NATS) []types.ServerID {
	var ids []types.ServerID
	for _, s := range view.Servers() {
		ids = append(ids, s.ID)
	}

	return ids
}

func TestNewNATSNilKV(t *testing.T) {
	_, err := topology.NewNATS(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KeyValue store is nil")
}

func TestNewNATSDefaults(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-defaults")

	view, err := topology.NewNATS(kv)
	require.NoError(t, err)
	defer view.Close()

	assert.Equal(t, testKey, view.Config().Key)
	assert.Equal(t, 5*time.Second, view.Config().PollInterval)
	assert.Equal(t, 10*time.Second, view.Config().InitialFetchTimeout)
}

func TestNewNATSOptions(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-options")

	view, err := topology.NewNATS(kv,
		topology.WithKey("custom.servers"),
		topology.WithPollInterval(10*time.Second),
		topology.WithInitialFetchTimeout(30*time.Second),
	)
	require.NoError(t, err)
	defer view.Close()

	assert.Equal(t, "custom.servers", view.Config().Key)
	assert.Equal(t, 10*time.Second, view.Config().PollInterval)
	assert.Equal(t, 30*time.Second, view.Config().InitialFetchTimeout)
}

func TestNATSInitialFetch(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-initial")

	_, err := topology.PutServers(t.Context(), kv, testKey, topology.ServerList{
		Servers: []topology.ServerEntry{
			{ID: "db-1:27017", Type: types.ServerRSPrimary, RTTMillis: 1.5},
			{ID: "db-2:27017", Type: types.ServerRSSecondary, Tags: types.TagSet{"dc": "east"}},
			{ID: "db-3:27017", Type: types.ServerRSSecondary, Down: true},
		},
	})
	require.NoError(t, err)

	view := startView(t, kv)

	servers := view.Servers()
	require.Len(t, servers, 3)
	assert.Equal(t, types.ServerRSPrimary, servers[0].Type)
	assert.Equal(t, 1500*time.Microsecond, servers[0].RTT)
	assert.Equal(t, "east", servers[1].Tags["dc"])
	assert.Equal(t, types.Reachable, view.ServerState("db-1:27017"))
	assert.Equal(t, types.Unreachable, view.ServerState("db-3:27017"))
}

func TestNATSWatchesUpdates(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-watch")
	view := startView(t, kv)

	assert.Empty(t, view.Servers())

	_, err := topology.PutServers(t.Context(), kv, testKey, topology.ServerList{
		Servers: []topology.ServerEntry{{ID: "db-1:27017", Type: types.ServerRSPrimary}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(view.Servers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = topology.PutServers(t.Context(), kv, testKey, topology.ServerList{
		Servers: []topology.ServerEntry{
			{ID: "db-1:27017", Type: types.ServerRSSecondary},
			{ID: "db-2:27017", Type: types.ServerRSPrimary},
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]types.ServerID{"db-1:27017", "db-2:27017"}, serverIDs(view))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNATSDeleteEmptiesView(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-delete")

	_, err := topology.PutServers(t.Context(), kv, testKey, topology.ServerList{
		Servers: []topology.ServerEntry{{ID: "db-1:27017", Type: types.ServerRSPrimary}},
	})
	require.NoError(t, err)
	view := startView(t, kv)
	require.Len(t, view.Servers(), 1)

	require.NoError(t, kv.Delete(t.Context(), testKey))

	require.Eventually(t, func() bool {
		return len(view.Servers()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNATSInvalidJSONKeepsLastList(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-invalid")

	_, err := topology.PutServers(t.Context(), kv, testKey, topology.ServerList{
		Servers: []topology.ServerEntry{{ID: "db-1:27017", Type: types.ServerRSPrimary}},
	})
	require.NoError(t, err)
	view := startView(t, kv)

	_, err = kv.Put(t.Context(), testKey, []byte("{not json"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []types.ServerID{"db-1:27017"}, serverIDs(view))
}

func TestNATSSuspectHintsStayLocal(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-suspect")

	_, err := topology.PutServers(t.Context(), kv, testKey, topology.ServerList{
		Servers: []topology.ServerEntry{{ID: "db-1:27017", Type: types.ServerRSPrimary}},
	})
	require.NoError(t, err)
	view := startView(t, kv)

	view.MarkSuspect("db-1:27017", time.Now().Add(time.Hour))
	assert.Equal(t, types.Suspect, view.ServerState("db-1:27017"))

	entry, err := kv.Get(t.Context(), testKey)
	require.NoError(t, err)
	assert.NotContains(t, string(entry.Value()), "suspect")

	view.ClearSuspect("db-1:27017")
	assert.Equal(t, types.Reachable, view.ServerState("db-1:27017"))
}

func TestNATSClose(t *testing.T) {
	js := testutil.StartEmbeddedNATS(t)
	kv := createTestKV(t, js, "test-close")

	view, err := topology.NewNATS(kv)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	view.Start(ctx)

	require.NoError(t, view.Close())
	require.NoError(t, view.Close())
}
