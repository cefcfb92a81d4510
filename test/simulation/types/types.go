package types

import (
	"context"
	"log/slog"
	"time"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/test/simulation/chaos"
	"github.com/arloliu/reprise/test/simulation/workload"
	"github.com/arloliu/reprise/topology"
	rtypes "github.com/arloliu/reprise/types"
)

// Environment holds the shared resources for the simulation.
type Environment struct {
	Client  *reprise.Client
	Chaos   *chaos.Transport
	View    *topology.Local
	Tracker *workload.ReadTracker
	Logger  *slog.Logger

	// Servers in the order of the configuration; the first one starts as primary.
	Servers []rtypes.ServerDescription

	// Hold is how long a scenario keeps its fault injected.
	Hold time.Duration
}

// Scenario defines a test scenario interface.
type Scenario interface {
	// Name returns the unique name of the scenario.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Run executes the scenario logic.
	Run(ctx context.Context, env *Environment) error
}
