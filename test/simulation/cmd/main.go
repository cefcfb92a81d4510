package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentional for simulation
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/arloliu/reprise/test/simulation"
	"github.com/arloliu/reprise/test/simulation/config"
	"github.com/arloliu/reprise/test/simulation/scenarios"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	profile := flag.String("profile", "quick", "Simulation profile (quick, comprehensive, soak)")
	duration := flag.Duration("duration", 0, "Total simulation duration, overrides the config file")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	pprofAddr := flag.String("pprof", "", "Serve pprof on this address, e.g. :6060")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))

	settings := config.Default()
	if *configPath != "" {
		var err error
		settings, err = config.Load(*configPath)
		if err != nil {
			logger.Error("Failed to load configuration", "path", *configPath, "error", err)
			return err
		}
	}
	if *duration > 0 {
		settings.Simulation.Duration = *duration
	}
	if settings.Simulation.Seed == 0 {
		settings.Simulation.Seed = *seed
	}

	logger.Info("Starting read retry simulation",
		"profile", *profile,
		"seed", settings.Simulation.Seed,
		"duration", settings.Simulation.Duration,
	)

	if *pprofAddr != "" {
		go func() {
			logger.Info("Starting pprof server", "addr", *pprofAddr)
			server := &http.Server{
				Addr:              *pprofAddr,
				ReadHeaderTimeout: 3 * time.Second,
			}
			if err := server.ListenAndServe(); err != nil {
				logger.Error("pprof server failed", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sim, err := simulation.New(simulation.Config{Profile: *profile, Settings: settings}, logger)
	if err != nil {
		logger.Error("Failed to initialize simulation", "error", err)
		return err
	}

	for _, sc := range scenarios.ForProfile(*profile) {
		sim.RegisterScenario(sc)
	}

	if err := sim.Run(ctx); err != nil {
		logger.Error("Simulation failed", "error", err)
		return err
	}

	logger.Info("Simulation completed successfully")

	return nil
}
