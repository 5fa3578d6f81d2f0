package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timelock/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Empty optional fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"action":  ev.Action,
			"outcome": ev.Outcome,
			"time":    ev.Time,
		}
		if ev.Caller != "" {
			m["caller"] = ev.Caller
		}
		if ev.Op != "" {
			m["op"] = ev.Op
		}
		if ev.Role != "" {
			m["role"] = ev.Role
			m["account"] = ev.Account
		}
		if ev.State != "" {
			m["state"] = ev.State
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// MarshalTrace renders a run's trace as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
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
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
