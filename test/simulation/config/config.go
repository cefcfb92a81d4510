package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
)

// Config represents the simulation configuration
type Config struct {
	Simulation SimulationConfig       `yaml:"simulation"`
	Client     ClientConfig           `yaml:"client"`
	Servers    []topology.ServerEntry `yaml:"servers"`
}

type SimulationConfig struct {
	Duration time.Duration `yaml:"duration"`
	Seed     int64         `yaml:"seed"`
	// Interval between two reads of the workload
	Interval time.Duration `yaml:"interval"`
	// Workers issuing reads concurrently
	Workers int `yaml:"workers"`
	// Hold is how long each scenario keeps its fault injected
	Hold time.Duration `yaml:"hold"`
}

type ClientConfig struct {
	RetryReads             *bool         `yaml:"retry_reads"`
	ReadPreference         string        `yaml:"read_preference"` // primary | secondaryPreferred | nearest ...
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout"`
	SuspectTTL             time.Duration `yaml:"suspect_ttl"`
	OperationTimeout       time.Duration `yaml:"operation_timeout"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()

	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.setDefaults()

	if _, err := types.ParseReadPreferenceMode(cfg.Client.ReadPreference); err != nil {
		return nil, fmt.Errorf("client.read_preference: %w", err)
	}

	return &cfg, nil
}

// RetryReads reports whether the client retries reads.
func (c *Config) RetryReads() bool {
	return c.Client.RetryReads == nil || *c.Client.RetryReads
}

func (c *Config) setDefaults() {
	if c.Simulation.Duration == 0 {
		c.Simulation.Duration = 5 * time.Minute
	}
	if c.Simulation.Interval == 0 {
		c.Simulation.Interval = 10 * time.Millisecond
	}
	if c.Simulation.Workers == 0 {
		c.Simulation.Workers = 4
	}
	if c.Simulation.Hold == 0 {
		c.Simulation.Hold = 10 * time.Second
	}
	if c.Client.ReadPreference == "" {
		c.Client.ReadPreference = "secondaryPreferred"
	}
	if c.Client.ServerSelectionTimeout == 0 {
		c.Client.ServerSelectionTimeout = 2 * time.Second
	}
	if c.Client.SuspectTTL == 0 {
		c.Client.SuspectTTL = time.Second
	}
	if c.Client.OperationTimeout == 0 {
		c.Client.OperationTimeout = 3 * time.Second
	}
	if len(c.Servers) == 0 {
		c.Servers = []topology.ServerEntry{
			{ID: "sim-1:27017", Type: types.ServerRSPrimary, RTTMillis: 2},
			{ID: "sim-2:27017", Type: types.ServerRSSecondary, RTTMillis: 3},
			{ID: "sim-3:27017", Type: types.ServerRSSecondary, RTTMillis: 4},
		}
	}
}
