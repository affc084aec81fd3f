// Package config loads the engine's configuration file.
//
// Configuration is YAML on disk, validated against an embedded CUE schema so
// a malformed file fails at startup with a precise constraint error instead
// of surfacing later as odd runtime behavior.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the engine's startup configuration.
type Config struct {
	DataDir  string `yaml:"data_dir" json:"data_dir"`
	Database string `yaml:"database" json:"database"`
	UserID   string `yaml:"user_id" json:"user_id"`
	Remote   Remote `yaml:"remote" json:"remote"`
	Agent    Agent  `yaml:"agent" json:"agent"`
}

// Remote configures the sync endpoint boundary.
type Remote struct {
	BaseURL        string `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Agent configures the replay agent.
type Agent struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

// Default returns the configuration used when the file omits a field.
func Default() Config {
	return Config{
		DataDir: "./data",
		Remote: Remote{
			TimeoutSeconds: 10,
		},
		Agent: Agent{
			IntervalSeconds: 60,
		},
	}
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse defaults and validates raw YAML configuration.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database == "" {
		cfg.Database = filepath.Join(cfg.DataDir, "shelfsync.db")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate unifies the configuration with the embedded CUE schema.
func validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("config schema missing #Config definition")
	}

	unified := def.Unify(ctx.Encode(cfg))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Timeout returns the remote per-attempt timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// Interval returns the agent's periodic drain interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Agent.IntervalSeconds) * time.Second
}
