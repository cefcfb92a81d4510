package reprise

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/reprise/topology"
	"github.com/arloliu/reprise/types"
)

// FileConfig is the YAML configuration of a reprise deployment.
//
// Example:
//
//	uri: "reprise://db-1:27017,db-2:27017/app?readPreference=secondaryPreferred"
//	retryReads: true
//	serverSelectionTimeout: 5s
//	suspectTTL: 10s
//	servers:
//	  - id: db-1:27017
//	    type: RSPrimary
//	    rttMs: 1.5
//	  - id: db-2:27017
//	    type: RSSecondary
//	    tags: {dc: east}
//	nats:
//	  url: ${NATS_URL}
//	  subjectPrefix: reprise.server
//
// Environment variables in the file are expanded before parsing. Settings
// given explicitly override the ones carried by the URI.
type FileConfig struct {
	URI                    string                 `yaml:"uri"`
	RetryReads             *bool                  `yaml:"retryReads"`
	ReadPreference         *FileReadPreference    `yaml:"readPreference"`
	ServerSelectionTimeout time.Duration          `yaml:"serverSelectionTimeout"`
	LocalThreshold         time.Duration          `yaml:"localThreshold"`
	SuspectTTL             time.Duration          `yaml:"suspectTTL"`
	SessionIdleTimeout     time.Duration          `yaml:"sessionIdleTimeout"`
	Servers                []topology.ServerEntry `yaml:"servers"`
	NATS                   NATSFileConfig         `yaml:"nats"`
}

// FileReadPreference is the YAML form of a read preference.
type FileReadPreference struct {
	Mode string          `yaml:"mode"`
	Tags []types.TagSet `yaml:"tags"`
}

// NATSFileConfig configures the NATS transport and topology.
type NATSFileConfig struct {
	// URL of the NATS server. Empty disables NATS.
	URL string `yaml:"url"`

	// SubjectPrefix is prepended to the server id to form request subjects.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// Bucket and Key locate the server list in NATS KV. Empty Bucket means
	// the static server list is used.
	Bucket string `yaml:"bucket"`
	Key    string `yaml:"key"`
}

// LoadConfigFile reads a YAML configuration file.
//
// Parameters:
//   - path: Path of the file
//
// Returns:
//   - *FileConfig: Parsed configuration
//   - error: Read or parse error
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reprise: failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding environment variables.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return nil, fmt.Errorf("reprise: failed to parse config file: %w", err)
	}

	return &fc, nil
}

// Options converts the configuration to client options.
//
// Returns:
//   - []Option: Client options, URI settings first
//   - error: Invalid URI or read preference
func (fc *FileConfig) Options() ([]Option, error) {
	var opts []Option
	if fc.URI != "" {
		cs, err := ParseURI(fc.URI)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cs.Options()...)
	}

	if fc.RetryReads != nil {
		opts = append(opts, WithRetryReads(*fc.RetryReads))
	}
	if fc.ReadPreference != nil {
		mode, err := types.ParseReadPreferenceMode(fc.ReadPreference.Mode)
		if err != nil {
			return nil, err
		}
		rp := ReadPreference{Mode: mode, TagSets: fc.ReadPreference.Tags}
		if err := rp.Validate(); err != nil {
			return nil, err
		}
		opts = append(opts, WithReadPreference(rp))
	}
	if fc.ServerSelectionTimeout > 0 {
		opts = append(opts, WithServerSelectionTimeout(fc.ServerSelectionTimeout))
	}
	if fc.LocalThreshold > 0 {
		opts = append(opts, WithLocalThreshold(fc.LocalThreshold))
	}
	if fc.SuspectTTL > 0 {
		opts = append(opts, WithSuspectTTL(fc.SuspectTTL))
	}
	if fc.SessionIdleTimeout > 0 {
		opts = append(opts, WithSessionIdleTimeout(fc.SessionIdleTimeout))
	}

	return opts, nil
}

// LocalTopology builds an in-memory view from the static server list.
func (fc *FileConfig) LocalTopology() *topology.Local {
	view := topology.NewLocal()
	descs := make([]types.ServerDescription, 0, len(fc.Servers))
	var down []types.ServerID
	for _, e := range fc.Servers {
		descs = append(descs, e.Description())
		if e.Down {
			down = append(down, e.ID)
		}
	}
	view.Replace(descs, down...)

	return view
}
