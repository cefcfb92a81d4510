package integration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
)

func TestFailoverToNewPrimary(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.failAlways("db-1:27017", &types.ServerError{Code: 10107, CodeName: "NotWritablePrimary", Message: "not primary"})

	client := c.client()

	_, err := client.Command("shop", countCmd()).ExecContext(t.Context())
	require.Error(t, err)
	c.resetServed()

	// the monitor notices the election and publishes the new roles
	c.publishAndWait(func() bool {
		for _, s := range c.view.Servers() {
			if s.ID == "db-2:27017" {
				return s.Type == types.ServerRSPrimary
			}
		}

		return false
	},
		topology.ServerEntry{ID: "db-1:27017", Type: types.ServerRSSecondary},
		topology.ServerEntry{ID: "db-2:27017", Type: types.ServerRSPrimary},
		topology.ServerEntry{ID: "db-3:27017", Type: types.ServerRSSecondary},
	)

	reply, err := client.Command("shop", countCmd()).ExecContext(t.Context())
	require.NoError(t, err)
	assert.Equal(t, types.ServerID("db-2:27017"), replyServer(t, reply))
	assert.Equal(t, []types.ServerID{"db-2:27017"}, c.servedBy())
}

func TestSuspectIsNotPublished(t *testing.T) {
	c := startCluster(t, replicaSet())
	before, err := c.kv.Get(t.Context(), topologyKey)
	require.NoError(t, err)

	c.failAlways("db-1:27017", &types.ServerError{Code: 91, Message: "shutting down"})
	_, err = c.client().Command("shop", countCmd()).ExecContext(t.Context())
	require.Error(t, err)

	assert.Equal(t, types.Suspect, c.view.ServerState("db-1:27017"))

	after, err := c.kv.Get(t.Context(), topologyKey)
	require.NoError(t, err)
	assert.Equal(t, before.Revision(), after.Revision())
}

func TestDownServerIsNeverSelected(t *testing.T) {
	entries := replicaSet()
	entries[0].Down = true
	c := startCluster(t, entries)

	client := c.client()

	_, err := client.Command("shop", countCmd()).ExecContext(t.Context())
	require.ErrorIs(t, err, reprise.ErrNoEligibleServer)
	assert.Empty(t, c.servedBy())

	reply, err := client.ExecuteRead(t.Context(), "shop", countCmd(),
		reprise.ReadPreference{Mode: reprise.PrimaryPreferred}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, types.ServerID("db-1:27017"), replyServer(t, reply))
}

func TestSelectionWaitsForTopologyChange(t *testing.T) {
	c := startCluster(t, []topology.ServerEntry{
		{ID: "db-1:27017", Type: types.ServerRSPrimary},
	})

	client := c.client(reprise.WithServerSelectionTimeout(5 * time.Second))

	go func() {
		time.Sleep(200 * time.Millisecond)
		c.publish(
			topology.ServerEntry{ID: "db-1:27017", Type: types.ServerRSPrimary},
			topology.ServerEntry{ID: "db-2:27017", Type: types.ServerRSSecondary},
		)
	}()

	reply, err := client.ExecuteRead(t.Context(), "shop", countCmd(),
		reprise.ReadPreference{Mode: reprise.Secondary}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ServerID("db-2:27017"), replyServer(t, reply))
}

func TestRemovedServerIsNotUsedForRetry(t *testing.T) {
	c := startCluster(t, replicaSet())
	client := c.client()

	c.publishAndWait(func() bool { return len(c.view.Servers()) == 2 },
		topology.ServerEntry{ID: "db-1:27017", Type: types.ServerRSPrimary},
		topology.ServerEntry{ID: "db-2:27017", Type: types.ServerRSSecondary},
	)
	c.failFirst(1, &types.ServerError{Code: 91, Message: "shutting down"})

	_, err := client.ExecuteRead(t.Context(), "shop", countCmd(),
		reprise.ReadPreference{Mode: reprise.Nearest}, nil)
	require.NoError(t, err)

	for _, s := range c.servedBy() {
		assert.NotEqual(t, types.ServerID("db-3:27017"), s)
	}
}
