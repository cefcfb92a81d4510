package scenarios

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/reprise/test/simulation/types"
	rtypes "github.com/arloliu/reprise/types"
)

// StepDown simulates a primary stepping down and a secondary being elected.
type StepDown struct{}

func (s *StepDown) Name() string {
	return "step-down"
}

func (s *StepDown) Description() string {
	return "Answers NotWritablePrimary on the primary, then swaps roles in the topology"
}

func (s *StepDown) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting StepDown scenario")

	primary, ok := firstOfType(env, rtypes.ServerRSPrimary)
	if !ok {
		return fmt.Errorf("no primary in topology")
	}
	successor, ok := firstOfType(env, rtypes.ServerRSSecondary)
	if !ok {
		return fmt.Errorf("no secondary in topology")
	}

	env.Logger.Info("Primary stepping down", "server", primary)
	env.Chaos.SetErrorRate(primary, 1.0, &rtypes.ServerError{
		Code:     10107,
		CodeName: "NotWritablePrimary",
		Message:  "not primary",
	})

	if err := sleep(ctx, env.Hold/2); err != nil {
		return err
	}

	env.Logger.Info("Electing new primary", "server", successor)
	env.View.Replace(swapRoles(env.Servers, primary, successor))
	before := env.Tracker.Stats()

	if err := sleep(ctx, env.Hold/2); err != nil {
		return err
	}

	env.Logger.Info("Restoring original roles")
	env.Chaos.SetErrorRate(primary, 0, nil)
	env.View.Replace(env.Servers)

	after := env.Tracker.Stats()
	if after.Succeeded == before.Succeeded {
		return fmt.Errorf("no read succeeded after %s was elected", successor)
	}
	env.Logger.Info("StepDown scenario completed")

	return nil
}

func swapRoles(servers []rtypes.ServerDescription, a, b rtypes.ServerID) []rtypes.ServerDescription {
	out := slices.Clone(servers)
	ia := slices.IndexFunc(out, func(d rtypes.ServerDescription) bool { return d.ID == a })
	ib := slices.IndexFunc(out, func(d rtypes.ServerDescription) bool { return d.ID == b })
	out[ia].Type, out[ib].Type = out[ib].Type, out[ia].Type

	return out
}
