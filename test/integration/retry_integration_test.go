package integration_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/test/testutil"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

func TestRetryOnAnotherSecondary(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.failFirst(1, &types.ServerError{Code: 91, CodeName: "ShutdownInProgress", Message: "shutting down"})

	recorder := testutil.NewEventRecorder()
	metrics := testutil.NewTestMetricsCollector()
	client := c.client(reprise.WithObserver(recorder), reprise.WithMetrics(metrics))

	reply, err := client.ExecuteRead(t.Context(), "shop", countCmd(),
		reprise.ReadPreference{Mode: reprise.Secondary}, nil)
	require.NoError(t, err)

	served := c.servedBy()
	require.Len(t, served, 2)
	assert.NotEqual(t, served[0], served[1])
	assert.Equal(t, served[1], replyServer(t, reply))

	assert.Equal(t, []string{"count", "count"}, recorder.StartedNames())
	require.Len(t, recorder.Retries(), 1)
	assert.EqualValues(t, 1, metrics.GetRetryTotal(served[0], served[1]))

	// the failed server is a local suspect only
	assert.Equal(t, types.Suspect, c.view.ServerState(served[0]))
}

func TestRetryOnSamePrimary(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.failFirst(1, &types.ServerError{Code: 189, CodeName: "PrimarySteppedDown", Message: "stepped down"})

	client := c.client()

	reply, err := client.Command("shop", countCmd()).ExecContext(t.Context())
	require.NoError(t, err)
	assert.Equal(t, types.ServerID("db-1:27017"), replyServer(t, reply))
	assert.Equal(t, []types.ServerID{"db-1:27017", "db-1:27017"}, c.servedBy())
}

func TestRetryExhaustedKeepsLastError(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.failAlways("db-1:27017", &types.ServerError{Code: 10107, CodeName: "NotWritablePrimary", Message: "not primary"})

	_, err := c.client().Command("shop", countCmd()).ExecContext(t.Context())

	var re *reprise.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, types.ReasonRetryExhausted, re.Reason)
	assert.Equal(t, 2, re.Attempt)

	var se *types.ServerError
	require.ErrorAs(t, err, &se)
	assert.EqualValues(t, 10107, se.Code)
	assert.Len(t, c.servedBy(), 2)
}

func TestRetryDisabledSendsOnce(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.failFirst(1, &types.ServerError{Code: 10107, Message: testutil.DefaultFailPointMessage})

	_, err := c.client(reprise.WithRetryReads(false)).Command("shop", countCmd()).ExecContext(t.Context())
	require.ErrorIs(t, err, reprise.ErrRetryDisabled)
	require.ErrorContains(t, err, testutil.DefaultFailPointMessage)
	assert.Len(t, c.servedBy(), 1)
}

func TestNoResponderRetriedElsewhere(t *testing.T) {
	c := startCluster(t, replicaSet(), "db-2:27017")

	client := c.client()
	for range 5 {
		_, err := client.ExecuteRead(t.Context(), "shop", countCmd(),
			reprise.ReadPreference{Mode: reprise.Secondary}, nil)
		require.NoError(t, err)
	}

	// db-2 never answers; every read ends on db-3
	served := c.servedBy()
	require.Len(t, served, 5)
	for _, s := range served {
		assert.Equal(t, types.ServerID("db-3:27017"), s)
	}
}

func TestTagSetSelection(t *testing.T) {
	c := startCluster(t, replicaSet())
	client := c.client()

	rp := reprise.ReadPreference{Mode: reprise.Nearest, TagSets: []types.TagSet{{"dc": "west"}, {}}}
	for range 5 {
		reply, err := client.ExecuteRead(t.Context(), "shop", countCmd(), rp, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ServerID("db-3:27017"), replyServer(t, reply))
	}
}

func TestConcurrentReadsNeverSendMoreThanTwice(t *testing.T) {
	c := startCluster(t, replicaSet())
	for _, e := range replicaSet() {
		c.failAlways(e.ID, &types.ServerError{Code: 11600, CodeName: "InterruptedAtShutdown", Message: "shutdown"})
	}

	recorder := testutil.NewEventRecorder()
	client := c.client(reprise.WithObserver(recorder))

	const ops = 20
	var wg sync.WaitGroup
	for range ops {
		wg.Go(func() {
			_, err := client.ExecuteRead(context.Background(), "shop", countCmd(),
				reprise.ReadPreference{Mode: reprise.Nearest}, nil)
			var re *reprise.ReadError
			if assert.ErrorAs(t, err, &re) {
				assert.Equal(t, types.ReasonRetryExhausted, re.Reason)
			}
		})
	}
	wg.Wait()

	assert.Len(t, c.servedBy(), 2*ops)
	assert.Len(t, recorder.Started(), 2*ops)
	assert.Len(t, recorder.Retries(), ops)
}

func TestExplicitSessionAcrossRetry(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.failFirst(1, &types.ServerError{Code: 13436, Message: "not primary or secondary"})

	client := c.client()
	sess, err := client.StartSession()
	require.NoError(t, err)
	defer sess.End()

	_, err = client.Command("shop", wire.Document{wire.E("find", "orders")}).
		ReadPreference(reprise.ReadPreference{Mode: reprise.SecondaryPreferred}).
		Session(sess).
		ExecContext(t.Context())
	require.NoError(t, err)
	assert.Len(t, c.servedBy(), 2)
}
