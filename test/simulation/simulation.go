package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arloliu/reprise"
	"github.com/arloliu/reprise/test/simulation/chaos"
	"github.com/arloliu/reprise/test/simulation/config"
	simtypes "github.com/arloliu/reprise/test/simulation/types"
	"github.com/arloliu/reprise/test/simulation/workload"
	"github.com/arloliu/reprise/test/testutil"
	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
	"github.com/arloliu/reprise/wire"
)

// Config holds simulation configuration.
type Config struct {
	Profile  string
	Settings *config.Config
}

// Simulation orchestrates the test execution.
type Simulation struct {
	config    Config
	logger    *slog.Logger
	env       *simtypes.Environment
	scenarios []simtypes.Scenario
	wg        sync.WaitGroup
}

// New creates a new simulation instance.
func New(cfg Config, logger *slog.Logger) (*Simulation, error) {
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if _, err := types.ParseReadPreferenceMode(cfg.Settings.Client.ReadPreference); err != nil {
		return nil, fmt.Errorf("read preference %q: %w", cfg.Settings.Client.ReadPreference, err)
	}

	return &Simulation{
		config:    cfg,
		logger:    logger,
		scenarios: make([]simtypes.Scenario, 0),
	}, nil
}

// RegisterScenario adds a scenario to the simulation.
func (s *Simulation) RegisterScenario(scenario simtypes.Scenario) {
	s.scenarios = append(s.scenarios, scenario)
}

// Tracker returns the read tracker, nil before Run.
func (s *Simulation) Tracker() *workload.ReadTracker {
	if s.env == nil {
		return nil
	}

	return s.env.Tracker
}

// Run executes the simulation.
func (s *Simulation) Run(ctx context.Context) error {
	s.logger.Info("Initializing simulation environment...")

	if err := s.setupEnvironment(); err != nil {
		return fmt.Errorf("failed to setup environment: %w", err)
	}
	defer s.teardown()

	ctx, cancel := context.WithTimeout(ctx, s.config.Settings.Simulation.Duration)
	defer cancel()

	s.logger.Info("Starting workload generator...")
	workloadCtx, stopWorkload := context.WithCancel(ctx)
	for range s.config.Settings.Simulation.Workers {
		s.wg.Go(func() { s.generateTraffic(workloadCtx) })
	}

	var failed []error
	for _, scenario := range s.scenarios {
		if ctx.Err() != nil {
			break
		}

		s.logger.Info("Running scenario", "name", scenario.Name(), "description", scenario.Description())

		if err := scenario.Run(ctx, s.env); err != nil {
			s.logger.Error("Scenario failed", "name", scenario.Name(), "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", scenario.Name(), err))
		} else {
			s.logger.Info("Scenario completed successfully", "name", scenario.Name())
		}
		s.env.Chaos.Reset()
		s.env.View.Replace(s.env.Servers)
		s.env.Tracker.Prune()
	}

	s.logger.Info("Stopping workload...")
	stopWorkload()
	s.wg.Wait()

	if err := errors.Join(failed...); err != nil {
		return err
	}

	return s.verify()
}

func (s *Simulation) setupEnvironment() error {
	settings := s.config.Settings

	descs := make([]types.ServerDescription, 0, len(settings.Servers))
	for _, e := range settings.Servers {
		descs = append(descs, e.Description())
	}
	view := topology.NewLocal(descs...)

	//nolint:gosec // Simulation data, not security sensitive
	transport := chaos.NewTransport(backend{}, uint64(settings.Simulation.Seed))
	tracker := workload.NewReadTracker()

	mode, _ := types.ParseReadPreferenceMode(settings.Client.ReadPreference)
	client, err := reprise.NewClient(transport, view,
		reprise.WithRetryReads(settings.RetryReads()),
		reprise.WithReadPreference(reprise.ReadPreference{Mode: mode}),
		reprise.WithServerSelectionTimeout(settings.Client.ServerSelectionTimeout),
		reprise.WithSuspectTTL(settings.Client.SuspectTTL),
		reprise.WithObserver(tracker),
		reprise.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}

	s.env = &simtypes.Environment{
		Client:  client,
		Chaos:   transport,
		View:    view,
		Tracker: tracker,
		Logger:  s.logger,
		Servers: descs,
		Hold:    settings.Simulation.Hold,
	}

	return nil
}

func (s *Simulation) teardown() {
	if s.env == nil {
		return
	}
	if s.env.Client != nil {
		_ = s.env.Client.Close()
	}
	_ = s.env.View.Close()
}

func (s *Simulation) generateTraffic(ctx context.Context) {
	ticker := time.NewTicker(s.config.Settings.Simulation.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.read(ctx)
		}
	}
}

func (s *Simulation) read(ctx context.Context) {
	id := s.env.Tracker.Begin()

	opCtx, cancel := context.WithTimeout(ctx, s.config.Settings.Client.OperationTimeout)
	defer cancel()

	_, err := s.env.Client.Command("sim", wire.Document{
		wire.E("find", "events"),
		wire.E("filter", wire.Document{wire.E("_id", id.String())}),
	}).ExecContext(opCtx)

	var re *types.ReadError
	if errors.As(err, &re) && re.Reason == types.ReasonDeadline && ctx.Err() != nil {
		// Workload stopping, not a read outcome
		s.env.Tracker.End(id, nil)
		return
	}
	if err != nil {
		s.logger.Debug("Read failed", "id", id, "error", err)
	}
	s.env.Tracker.End(id, err)
}

func (s *Simulation) verify() error {
	s.logger.Info("Verifying simulation results...")

	if err := s.env.Tracker.Verify(); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats := s.env.Tracker.Stats()
	s.logger.Info("Verification passed!",
		"reads", stats.Total(),
		"succeeded", stats.Succeeded,
		"retried", stats.Retried,
		"sends", s.env.Chaos.Sends(),
		"injected", s.env.Chaos.Injected(),
	)

	return nil
}

// backend answers every read like a healthy server.
type backend struct{}

func (backend) Send(_ context.Context, _ types.ServerID, msg *wire.Message) (*wire.Reply, error) {
	return testutil.DefaultReply(msg, types.ReplyMetadata{})
}
