package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roark/stately/internal/canonical"
	"github.com/roark/stately/internal/testutil"
)

// TraceSnapshot captures a scenario execution for golden comparison.
// Serialization goes through the canonical encoder so the bytes are
// deterministic across runs and map iteration orders.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []testutil.TraceEvent
	FinalState   map[string]any
}

// toCanonicalMap converts the snapshot to the plain map shape the
// canonical encoder handles directly.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"kind": event.Kind,
			"type": event.Type,
		}
		if event.Payload != nil {
			eventMap["payload"] = event.Payload
		}
		if event.Token != "" {
			eventMap["token"] = event.Token
		}
		if event.Err != "" {
			eventMap["error"] = event.Err
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final_state":   s.FinalState,
	}
}

// RunWithGolden executes a scenario and compares its trace and final
// state against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, catalog Catalog) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, catalog)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against the named
// golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		FinalState:   result.FinalState,
	}

	traceJSON, err := canonical.Marshal(snapshot.toCanonicalMap())
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
