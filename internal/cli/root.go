// Package cli implements the reprise command line tool.
package cli

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/arloliu/reprise"
)

// Environment variables read by the CLI, usually from a .env file.
const (
	envNATSURL = "REPRISE_NATS_URL"
	envConfig  = "REPRISE_CONFIG"
)

type globalFlags struct {
	configPath string
	envFile    string
	natsURL    string
	debug      bool
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the reprise command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "reprise",
		Short: "Retryable reads against replicated database servers",
		Long: `reprise sends read commands to database servers over NATS, retrying a
failed read once on another suitable server.

Settings come from a YAML config file, a connection string and flags, in
that order of precedence, lowest first.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnv(g.envFile); err != nil {
				return err
			}
			if g.configPath == "" {
				g.configPath = os.Getenv(envConfig)
			}
			if !cmd.Flags().Changed("nats-url") {
				if url := os.Getenv(envNATSURL); url != "" {
					g.natsURL = url
				}
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (env "+envConfig+")")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before anything else")
	root.PersistentFlags().StringVar(&g.natsURL, "nats-url", "", "NATS server URL (env "+envNATSURL+")")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(newReadCommand(g), newServeMockCommand(g))

	return root
}

// loadEnv loads a dotenv file; a missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	if g.debug {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

// fileConfig loads the config file, or returns an empty config without one.
func (g *globalFlags) fileConfig() (*reprise.FileConfig, error) {
	if g.configPath == "" {
		return &reprise.FileConfig{}, nil
	}

	return reprise.LoadConfigFile(g.configPath)
}

// resolveNATSURL picks the flag, then the config file, then the default.
func (g *globalFlags) resolveNATSURL(fc *reprise.FileConfig) string {
	switch {
	case g.natsURL != "":
		return g.natsURL
	case fc.NATS.URL != "":
		return fc.NATS.URL
	default:
		return "nats://127.0.0.1:4222"
	}
}
