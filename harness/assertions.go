package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roark/stately/internal/canonical"
	"github.com/roark/stately/internal/testutil"
	"github.com/roark/stately/store"
)

// AssertionError is returned when an assertion fails. It includes the
// full trace so failures are debuggable without re-running.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []testutil.TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %v\n", i+1, event.Kind, event.Type, event.Payload)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and
// returns the failure messages. An empty slice means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	for _, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStateEquals:
			err = assertStateEquals(result.FinalState, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

// eventMatches reports whether a trace event is the given kind and
// type. Actions match on their before event so each dispatch counts
// once regardless of outcome.
func eventMatches(event testutil.TraceEvent, kind, typ string) bool {
	switch kind {
	case "mutation":
		return event.Kind == "mutation" && event.Type == typ
	case "action":
		return event.Kind == "action:before" && event.Type == typ
	}
	return false
}

// assertTraceContains checks that the trace contains an event matching
// the assertion's kind, type, and payload (subset match).
func assertTraceContains(trace []testutil.TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if eventMatches(event, assertion.Kind, assertion.Event) {
			if assertion.Payload == nil || matchValue(event.Payload, assertion.Payload) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s with payload %v", assertion.Kind, assertion.Event, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed events appear in order.
// Events don't need to be consecutive.
func assertTraceOrder(trace []testutil.TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		for _, expected := range assertion.Events {
			kind, typ, ok := splitEventRef(expected)
			if !ok {
				continue
			}
			if eventMatches(event, kind, typ) && positions[expected] == 0 {
				positions[expected] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, expected := range assertion.Events {
		if _, _, ok := splitEventRef(expected); !ok {
			return fmt.Errorf("trace_order: malformed event ref %q (want \"kind type\")", expected)
		}
		if positions[expected] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", expected),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev, curr := assertion.Events[i-1], assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the event appears exactly Count times.
func assertTraceCount(trace []testutil.TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if eventMatches(event, assertion.Kind, assertion.Event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", assertion.Count, assertion.Kind, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStateEquals walks a dotted path into the final state and
// compares the value there (subset semantics for maps).
func assertStateEquals(state store.State, assertion Assertion) error {
	val, ok := stateAt(state, assertion.Path)
	if !ok {
		return &AssertionError{
			Type:     AssertStateEquals,
			Expected: fmt.Sprintf("value at path %q", assertion.Path),
			Actual:   "path not found in final state",
		}
	}

	if !matchValue(val, assertion.Value) {
		return &AssertionError{
			Type:     AssertStateEquals,
			Expected: fmt.Sprintf("%v at path %q", assertion.Value, assertion.Path),
			Actual:   fmt.Sprintf("%v", val),
		}
	}
	return nil
}

// splitEventRef parses "kind type" refs used by trace_order.
func splitEventRef(ref string) (kind, typ string, ok bool) {
	kind, typ, ok = strings.Cut(ref, " ")
	if !ok || (kind != "mutation" && kind != "action") || typ == "" {
		return "", "", false
	}
	return kind, typ, true
}

// stateAt resolves a dotted path against the state tree.
func stateAt(state store.State, path string) (any, bool) {
	var current any = state
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// matchValue compares an actual value against an expected one. Maps
// match with subset semantics (only expected keys are checked); slices
// match element-wise; scalars compare through the canonical encoding,
// which unifies the numeric types YAML and Go handlers produce.
func matchValue(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, expVal := range exp {
			actVal, present := act[key]
			if !present || !matchValue(actVal, expVal) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(act[i], exp[i]) {
				return false
			}
		}
		return true
	default:
		a, errA := canonical.Marshal(actual)
		b, errB := canonical.Marshal(expected)
		if errA != nil || errB != nil {
			return false
		}
		return bytes.Equal(a, b)
	}
}
