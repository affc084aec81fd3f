// Package harness provides a YAML scenario runner for end-to-end engine
// flows: toggles, connectivity changes and drain cycles executed against a
// real store with deterministic clocks and operation ids, compared against
// golden trace files.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines one end-to-end flow.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StartOffline starts the connectivity monitor offline.
	StartOffline bool `yaml:"start_offline,omitempty"`

	// Steps is the ordered flow to execute.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action, discriminated by Do.
type Step struct {
	// Do selects the action: toggle, undo, online, offline, drain, remote,
	// advance.
	Do string `yaml:"do"`

	// Toggle payload.
	ItemID string   `yaml:"item_id,omitempty"`
	Title  string   `yaml:"title,omitempty"`
	Year   int      `yaml:"year,omitempty"`
	Rating *float64 `yaml:"rating,omitempty"`

	// Remote stub behavior: "ok" or "fail".
	Mode string `yaml:"mode,omitempty"`

	// Clock advance for the advance step.
	Seconds int `yaml:"seconds,omitempty"`
}

// Step action constants.
const (
	StepToggle  = "toggle"
	StepUndo    = "undo"
	StepOnline  = "online"
	StepOffline = "offline"
	StepDrain   = "drain"
	StepRemote  = "remote"
	StepAdvance = "advance"
)

// Assertion validates final state.
type Assertion struct {
	// Type selects the assertion: saved, queue_len, queue_types, record,
	// retry_count.
	Type string `yaml:"type"`

	ItemID     string   `yaml:"item_id,omitempty"`
	OpID       string   `yaml:"op_id,omitempty"`
	Saved      *bool    `yaml:"saved,omitempty"`
	Present    *bool    `yaml:"present,omitempty"`
	Count      *int     `yaml:"count,omitempty"`
	Types      []string `yaml:"types,omitempty"`
	RetryCount *int     `yaml:"retry_count,omitempty"`
}

// Assertion type constants.
const (
	AssertSaved      = "saved"
	AssertQueueLen   = "queue_len"
	AssertQueueTypes = "queue_types"
	AssertRecord     = "record"
	AssertRetryCount = "retry_count"
)

// LoadScenario parses a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml scenario under dir, sorted by filename.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
