package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios exercise a store built from a catalog module configuration
// by running a flow of commits and dispatches and asserting on the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module names the catalog entry whose configuration seeds the
	// store.
	Module string `yaml:"module"`

	// Tokens optionally fixes the dispatch tokens for deterministic
	// traces. When empty, tokens default to tok-1, tok-2, ...
	Tokens []string `yaml:"tokens,omitempty"`

	// Setup contains steps run before the main flow to establish
	// initial state. Setup steps must succeed; expect clauses are not
	// allowed here.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the main test flow. Each step commits a mutation or
	// dispatches an action, optionally validating the dispatch outcome.
	Flow []Step `yaml:"flow"`

	// Assertions validate the recorded trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single commit or dispatch. Exactly one of Commit and
// Dispatch must be set.
type Step struct {
	// Commit is the qualified mutation type to commit.
	Commit string `yaml:"commit,omitempty"`

	// Dispatch is the qualified action type to dispatch.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Payload is passed to the handler as-is.
	Payload any `yaml:"payload,omitempty"`

	// Expect validates the dispatch outcome. Only valid on dispatch
	// steps in the flow section.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a dispatch.
type ExpectClause struct {
	// Result is the expected dispatch return value. Maps match with
	// subset semantics; scalars match exactly.
	Result any `yaml:"result,omitempty"`

	// Error is a substring the dispatch error must contain. When empty
	// the dispatch must succeed.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind selects the trace stream: "mutation" or "action". Used by
	// trace_contains and trace_count.
	Kind string `yaml:"kind,omitempty"`

	// Event is the qualified mutation or action type (trace_contains,
	// trace_count).
	Event string `yaml:"event,omitempty"`

	// Payload is the expected payload, subset-matched (trace_contains).
	Payload any `yaml:"payload,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events lists "kind type" pairs expected in order (trace_order),
	// e.g. "mutation cart/add" or "action checkout".
	Events []string `yaml:"events,omitempty"`

	// Path is a dotted path into the final state (state_equals).
	Path string `yaml:"path,omitempty"`

	// Value is the expected value at Path (state_equals). Maps match
	// with subset semantics.
	Value any `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStateEquals   = "state_equals"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation
// (catches typos like "assertion:" vs "assertions:").
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Commit != "" {
			return fmt.Errorf("flow[%d]: expect is only valid on dispatch steps", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks that a step names exactly one operation.
func validateStep(step *Step) error {
	switch {
	case step.Commit == "" && step.Dispatch == "":
		return fmt.Errorf("one of commit or dispatch is required")
	case step.Commit != "" && step.Dispatch != "":
		return fmt.Errorf("commit and dispatch are mutually exclusive")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" || a.Event == "" {
			return fmt.Errorf("assertions[%d]: kind and event are required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" || a.Event == "" {
			return fmt.Errorf("assertions[%d]: kind and event are required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertStateEquals:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for state_equals", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Kind != "" && a.Kind != "mutation" && a.Kind != "action" {
		return fmt.Errorf("assertions[%d]: kind must be %q or %q", index, "mutation", "action")
	}
	return nil
}
