package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/automaton/internal/canonical"
)

// Snapshot renders a finished scenario as canonical JSON. The machine
// hash is not included.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		m := map[string]any{
			"seq":      event.Seq,
			"input":    event.Input,
			"from":     event.From,
			"accepted": event.Accepted,
		}
		if event.To != "" {
			m["to"] = event.To
		}
		trace[i] = m
	}

	return canonical.Marshal(map[string]any{
		"scenario":    scenarioName,
		"run_id":      result.RunID,
		"machine":     result.Machine,
		"final_state": result.FinalState,
		"termination": result.Termination,
		"trace":       trace,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
