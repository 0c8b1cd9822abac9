package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/automaton/internal/table"
)

// DefaultTimeout bounds each await step and the final drain.
const DefaultTimeout = 2 * time.Second

// Scenario is a conformance test against one transition table.
type Scenario struct {
	// Name uniquely identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Machine is the table path, relative to the scenario file once loaded.
	Machine string `yaml:"machine"`

	// RunID fixes the run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Timeout overrides DefaultTimeout.
	Timeout table.Duration `yaml:"timeout,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	// Send pushes one or more inputs.
	Send table.Names `yaml:"send,omitempty"`

	// Await blocks until a condition holds.
	Await *Await `yaml:"await,omitempty"`

	// Sleep pauses the scenario.
	Sleep table.Duration `yaml:"sleep,omitempty"`

	// Complete ends the input source gracefully.
	Complete bool `yaml:"complete,omitempty"`

	// Interrupt ends the input source abruptly.
	Interrupt bool `yaml:"interrupt,omitempty"`

	// Close closes the automaton from the owner side.
	Close bool `yaml:"close,omitempty"`
}

// Await is a condition. Exactly one field is set.
type Await struct {
	State      string `yaml:"state,omitempty"`
	Replies    int    `yaml:"replies,omitempty"`
	Terminated string `yaml:"terminated,omitempty"`
}

// Assertion validates the finished run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// State is the expected final state (final_state).
	State string `yaml:"state,omitempty"`

	// Termination is the expected terminal kind (termination).
	Termination string `yaml:"termination,omitempty"`

	// Count is the expected number of replies (reply_count).
	Count *int `yaml:"count,omitempty"`

	// Inputs is the expected relative order (reply_order).
	Inputs []string `yaml:"inputs,omitempty"`

	// Input names the reply to look for (rejected, trace_contains).
	Input string `yaml:"input,omitempty"`

	// From and To narrow trace_contains to a transition.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertTermination   = "termination"
	AssertReplyCount    = "reply_count"
	AssertReplyOrder    = "reply_order"
	AssertRejected      = "rejected"
	AssertTraceContains = "trace_contains"
)

// LoadScenario reads a scenario file. Unknown fields are rejected, and
// the machine path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Machine != "" && !filepath.IsAbs(scenario.Machine) {
		scenario.Machine = filepath.Join(filepath.Dir(path), scenario.Machine)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Machine == "" {
		return fmt.Errorf("machine is required")
	}
	if _, err := os.Stat(s.Machine); os.IsNotExist(err) {
		return fmt.Errorf("machine file not found: %s", s.Machine)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, s Step) error {
	set := 0
	for _, ok := range []bool{len(s.Send) > 0, s.Await != nil, s.Sleep > 0, s.Complete, s.Interrupt, s.Close} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of send, await, sleep, complete, interrupt or close is required", i)
	}

	if s.Await != nil {
		conds := 0
		if s.Await.State != "" {
			conds++
		}
		if s.Await.Replies > 0 {
			conds++
		}
		if s.Await.Terminated != "" {
			conds++
			if !validTermination(s.Await.Terminated) {
				return fmt.Errorf("steps[%d].await: terminated must be completed, interrupted or any", i)
			}
		}
		if conds != 1 {
			return fmt.Errorf("steps[%d].await: exactly one of state, replies or terminated is required", i)
		}
	}
	return nil
}

func validTermination(s string) bool {
	return s == "completed" || s == "interrupted" || s == "any"
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", i)
		}
	case AssertTermination:
		if a.Termination != "completed" && a.Termination != "interrupted" {
			return fmt.Errorf("assertions[%d]: termination must be completed or interrupted", i)
		}
	case AssertReplyCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for reply_count", i)
		}
	case AssertReplyOrder:
		if len(a.Inputs) == 0 {
			return fmt.Errorf("assertions[%d]: inputs list is required for reply_order", i)
		}
	case AssertRejected, AssertTraceContains:
		if a.Input == "" {
			return fmt.Errorf("assertions[%d]: input is required for %s", i, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
