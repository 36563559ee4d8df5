package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dassi/internal/canon"
)

// TraceSnapshot captures the trace and final balances of a scenario run.
// It is serialized as canonical JSON for byte-stable comparison.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario"`
	Trace        []TraceEvent      `json:"trace"`
	Balances     map[string]string `json:"balances"`
}

// toCanonicalMap converts a TraceSnapshot to the map form canon.Marshal
// accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		if event.Action != "" {
			eventMap["action"] = event.Action
		}
		if event.Args != nil {
			args := make(map[string]any, len(event.Args))
			for k, v := range event.Args {
				args[k] = v
			}
			eventMap["args"] = args
		}
		if event.Now != 0 {
			eventMap["now"] = event.Now
		}
		if event.Outcome != "" {
			eventMap["outcome"] = event.Outcome
		}
		traceList[i] = eventMap
	}

	balances := make(map[string]any, len(s.Balances))
	for k, v := range s.Balances {
		balances[k] = v
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"trace":    traceList,
		"balances": balances,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot execute. Expectation failures and
// golden mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Balances:     result.Balances,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
