package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/types"
)

func TestDeadlineDuringAttempt(t *testing.T) {
	c := startCluster(t, replicaSet())
	c.block("db-1:27017")

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.client().Command("shop", countCmd()).ExecContext(ctx)
	require.ErrorIs(t, err, reprise.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	var re *reprise.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, types.ReasonDeadline, re.Reason)
	assert.Equal(t, 1, re.Attempt)
}

func TestCanceledContextSendsNothing(t *testing.T) {
	c := startCluster(t, replicaSet())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.client().Command("shop", countCmd()).ExecContext(ctx)
	require.Error(t, err)
	assert.Empty(t, c.servedBy())
}
