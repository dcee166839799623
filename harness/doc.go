// Package harness provides a conformance testing framework for stores.
//
// Scenarios are defined in YAML and executed against a real store built
// from a Go-side module catalog. A scenario names its module
// configuration, runs a sequence of setup and flow steps (commits and
// dispatches), and then evaluates assertions over the recorded trace
// and the final state tree.
//
// # Determinism
//
// Each scenario runs against a fresh store with a fixed token generator,
// so dispatch tokens are stable across runs. That makes traces
// byte-comparable: golden files (see RunWithGolden) serialize the
// scenario name, the full trace, and the final state through the
// canonical JSON encoder and compare against testdata/golden.
//
// # Assertions
//
// Supported assertion types:
//
//   - trace_contains: a mutation or action of the given type appears in
//     the trace, with an optional payload subset match
//   - trace_order: the listed events appear in the trace in order
//     (intervening events are allowed)
//   - trace_count: the event appears exactly N times
//   - state_equals: the value at a dotted path in the final state
//     matches the expected value (subset semantics for maps)
package harness
