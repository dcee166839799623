package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roark/stately/internal/testutil"
	"github.com/roark/stately/store"
)

// Catalog maps module names to configuration builders. Scenarios
// reference catalog entries by name; the builder is invoked once per
// run so every scenario gets a fresh configuration and initial state.
type Catalog map[string]func() *store.ModuleConfig

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and assertion
	// held.
	Pass bool

	// Trace contains every mutation and action lifecycle event in
	// notification order.
	Trace []testutil.TraceEvent

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string

	// FinalState is the state tree after the flow completed.
	FinalState store.State
}

// AddError records a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario against a fresh store built from the catalog.
//
// Each run uses a fixed token generator so dispatch tokens, and hence
// traces, are reproducible. Setup steps must succeed; flow steps are
// validated against their expect clauses; assertions are evaluated last
// against the recorded trace and final state.
func Run(scenario *Scenario, catalog Catalog) (*Result, error) {
	build, ok := catalog[scenario.Module]
	if !ok {
		return nil, fmt.Errorf("module %q not found in catalog", scenario.Module)
	}

	tokens := scenario.Tokens
	if len(tokens) == 0 {
		for i := 1; i <= 64; i++ {
			tokens = append(tokens, fmt.Sprintf("tok-%d", i))
		}
	}

	st, err := store.New(build(),
		store.WithTokenGenerator(store.NewFixedGenerator(tokens...)),
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	trace := &testutil.Trace{}
	detach := trace.Attach(st)
	defer detach()

	ctx := context.Background()
	result := &Result{Pass: true}

	for i, step := range scenario.Setup {
		if err := runStep(ctx, st, step, nil); err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
	}

	for i, step := range scenario.Flow {
		if err := runStep(ctx, st, step, result); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	result.Trace = trace.Events()
	result.FinalState = st.State()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep executes one step. Commit steps never fail at this level
// (unknown types are logged no-ops). Dispatch steps validate against
// the step's expect clause when result is non-nil; in setup (result is
// nil) a dispatch error aborts the run.
func runStep(ctx context.Context, st *store.Store, step Step, result *Result) error {
	if step.Commit != "" {
		st.Commit(step.Commit, step.Payload)
		return nil
	}

	got, err := st.Dispatch(ctx, step.Dispatch, step.Payload)
	if result == nil {
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", step.Dispatch, err)
		}
		return nil
	}

	if step.Expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("dispatch %s: unexpected error: %v", step.Dispatch, err))
		}
		return nil
	}
	validateExpect(result, step.Dispatch, got, err, step.Expect)
	return nil
}

// validateExpect checks a dispatch outcome against its expect clause.
func validateExpect(result *Result, typ string, got any, err error, expect *ExpectClause) {
	if expect.Error != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("dispatch %s: expected error containing %q, got nil", typ, expect.Error))
		case !strings.Contains(err.Error(), expect.Error):
			result.AddError(fmt.Sprintf("dispatch %s: expected error containing %q, got %q", typ, expect.Error, err.Error()))
		}
		return
	}

	if err != nil {
		result.AddError(fmt.Sprintf("dispatch %s: unexpected error: %v", typ, err))
		return
	}
	if expect.Result != nil && !matchValue(got, expect.Result) {
		result.AddError(fmt.Sprintf("dispatch %s: expected result %v, got %v", typ, expect.Result, got))
	}
}
