package scenarios

import (
	"context"
	"time"

	"github.com/arloliu/reprise/test/simulation/types"
	rtypes "github.com/arloliu/reprise/types"
)

func waitUntil(ctx context.Context, timeout time.Duration, condition func() bool) error {
	if condition() {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return context.DeadlineExceeded
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// hold keeps the injected fault for env.Hold.
func hold(ctx context.Context, env *types.Environment) error {
	return sleep(ctx, env.Hold)
}

func firstOfType(env *types.Environment, t rtypes.ServerType) (rtypes.ServerID, bool) {
	for _, d := range env.Servers {
		if d.Type == t {
			return d.ID, true
		}
	}

	return "", false
}
