package scenarios

import (
	"context"
	"fmt"

	"github.com/arloliu/reprise/test/simulation/types"
	rtypes "github.com/arloliu/reprise/types"
)

// ServerFailure simulates a secondary shutting down.
type ServerFailure struct{}

func (s *ServerFailure) Name() string {
	return "server-failure"
}

func (s *ServerFailure) Description() string {
	return "Fails every command on one secondary to verify reads move to other servers"
}

func (s *ServerFailure) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting ServerFailure scenario")

	victim, ok := firstOfType(env, rtypes.ServerRSSecondary)
	if !ok {
		return fmt.Errorf("no secondary in topology")
	}

	before := env.Tracker.Stats()

	env.Logger.Info("Shutting down server", "server", victim)
	env.Chaos.SetErrorRate(victim, 1.0, &rtypes.ServerError{
		Code:     91,
		CodeName: "ShutdownInProgress",
		Message:  "The server is in quiesce mode and will shut down",
	})

	if err := hold(ctx, env); err != nil {
		return err
	}

	env.Logger.Info("Recovering server", "server", victim)
	env.Chaos.SetErrorRate(victim, 0, nil)

	after := env.Tracker.Stats()
	if after.Succeeded == before.Succeeded {
		return fmt.Errorf("no read succeeded while %s was down", victim)
	}
	env.Logger.Info("ServerFailure scenario completed",
		"succeeded", after.Succeeded-before.Succeeded,
		"retried", after.Retried-before.Retried,
	)

	return nil
}
