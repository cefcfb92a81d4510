package reprise

import (
	"context"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/require"
)

func TestAttemptMachineAllowsOneRetry(t *testing.T) {
	ctx := context.Background()
	machine := newAttemptMachine()
	require.Equal(t, stateNotStarted, machine.Current())

	// retry before the first attempt is rejected
	var invalid fsm.InvalidEventError
	require.ErrorAs(t, machine.Event(ctx, eventRetry), &invalid)

	require.NoError(t, machine.Event(ctx, eventStart))
	require.Equal(t, stateFirstAttempt, machine.Current())

	require.NoError(t, machine.Event(ctx, eventRetry))
	require.Equal(t, stateRetryAttempt, machine.Current())

	err := machine.Event(ctx, eventRetry)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, eventRetry, invalid.Event)
	require.Equal(t, stateRetryAttempt, machine.Current())

	require.NoError(t, machine.Event(ctx, eventFinish))
	require.Equal(t, stateDone, machine.Current())
	require.Error(t, machine.Event(ctx, eventRetry))
	require.Error(t, machine.Event(ctx, eventStart))
}

func TestAttemptMachineFinishWithoutStart(t *testing.T) {
	machine := newAttemptMachine()

	require.NoError(t, machine.Event(context.Background(), eventFinish))
	require.Equal(t, stateDone, machine.Current())
}
