package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/reprise/test/simulation/types"
	rtypes "github.com/arloliu/reprise/types"
)

// Flapping simulates a secondary that keeps losing its connection.
type Flapping struct{}

func (s *Flapping) Name() string {
	return "flapping"
}

func (s *Flapping) Description() string {
	return "Drops half the sends to a secondary and toggles its reachability"
}

func (s *Flapping) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting Flapping scenario")

	var victim rtypes.ServerID
	for _, d := range env.Servers {
		if d.Type == rtypes.ServerRSSecondary {
			victim = d.ID
		}
	}
	if victim == "" {
		return fmt.Errorf("no secondary in topology")
	}

	env.Chaos.SetDropRate(victim, 0.5)
	defer func() {
		env.Chaos.SetDropRate(victim, 0)
		env.View.SetReachable(victim, true)
	}()

	period := max(env.Hold/10, 50*time.Millisecond)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	deadline := time.After(env.Hold)
	reachable := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			env.Logger.Info("Flapping scenario completed", "server", victim)
			return nil
		case <-ticker.C:
			reachable = !reachable
			env.View.SetReachable(victim, reachable)
			env.Logger.Debug("Server flapped", "server", victim, "reachable", reachable)
		}
	}
}
