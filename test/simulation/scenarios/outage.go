package scenarios

import (
	"context"
	"fmt"

	"github.com/arloliu/reprise/test/simulation/types"
	rtypes "github.com/arloliu/reprise/types"
)

// TotalOutage simulates every server dropping its connections.
type TotalOutage struct{}

func (s *TotalOutage) Name() string {
	return "total-outage"
}

func (s *TotalOutage) Description() string {
	return "Drops every send to verify reads fail after one retry and recover afterwards"
}

func (s *TotalOutage) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting TotalOutage scenario")
	before := env.Tracker.Stats()

	for _, d := range env.Servers {
		env.Chaos.SetDropRate(d.ID, 1.0)
	}

	if err := hold(ctx, env); err != nil {
		return err
	}
	during := env.Tracker.Stats()

	env.Logger.Info("Restoring all servers")
	for _, d := range env.Servers {
		env.Chaos.SetDropRate(d.ID, 0)
	}
	env.Tracker.Prune()

	failed := during.Failed[rtypes.ReasonRetryExhausted] + during.Failed[rtypes.ReasonRetryDisabled] -
		before.Failed[rtypes.ReasonRetryExhausted] - before.Failed[rtypes.ReasonRetryDisabled]
	if failed == 0 {
		return fmt.Errorf("no read failed during the outage")
	}

	if err := waitUntil(ctx, env.Hold, func() bool {
		return env.Tracker.Stats().Succeeded > during.Succeeded
	}); err != nil {
		return fmt.Errorf("reads did not recover: %w", err)
	}
	env.Logger.Info("TotalOutage scenario completed", "failed", failed)

	return nil
}
