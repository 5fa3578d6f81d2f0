package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] t=%d %s", ev.Step, ev.Time, ev.Action)
			if ev.Op != "" {
				fmt.Fprintf(&buf, " %s", ev.Op)
			}
			if ev.Role != "" {
				fmt.Fprintf(&buf, " %s %s", ev.Role, ev.Account)
			}
			fmt.Fprintf(&buf, " -> %s", ev.Outcome)
			if ev.State != "" {
				fmt.Fprintf(&buf, " (%s)", ev.State)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext provides the live timelock for evaluating assertions.
type AssertionContext struct {
	Ctx      context.Context
	Timelock *engine.Timelock
	Store    *store.Store
	// IDs maps operation labels to their computed ids.
	IDs map[string]ir.OperationID
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOperationState:
			err = assertOperationState(result, assertion)
		case AssertMinDelay:
			err = assertMinDelay(result, assertion)
		case AssertHostState:
			err = assertHostState(result, assertion)
		case AssertHasRole:
			err = assertHasRole(actx, result, assertion)
		case AssertEventCount:
			err = assertEventCount(actx, result, assertion)
		case AssertReplay:
			err = assertReplay(actx, result)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i+1, assertion.Type, err))
		}
	}

	return errors
}

func assertOperationState(result *Result, a Assertion) error {
	want, err := ir.ParseOperationState(a.State)
	if err != nil {
		return err
	}
	got, ok := result.States[a.Op]
	if !ok {
		return fmt.Errorf("operation %q is not defined", a.Op)
	}
	if got != want.String() {
		return &AssertionError{
			Type:     AssertOperationState,
			Expected: fmt.Sprintf("%s is %s", a.Op, want),
			Actual:   fmt.Sprintf("%s is %s", a.Op, got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertMinDelay(result *Result, a Assertion) error {
	if result.MinDelay != *a.Value {
		return &AssertionError{
			Type:     AssertMinDelay,
			Expected: fmt.Sprintf("min_delay %d", *a.Value),
			Actual:   fmt.Sprintf("min_delay %d", result.MinDelay),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertHostState(result *Result, a Assertion) error {
	got, present := result.HostState[a.Key]
	switch {
	case a.Absent && present:
		return &AssertionError{
			Type:     AssertHostState,
			Expected: fmt.Sprintf("key %q absent", a.Key),
			Actual:   fmt.Sprintf("%q = %q", a.Key, got),
			Trace:    result.Trace,
		}
	case !a.Absent && !present:
		return &AssertionError{
			Type:     AssertHostState,
			Expected: fmt.Sprintf("%q = %q", a.Key, a.Equals),
			Actual:   "key not present",
			Trace:    result.Trace,
		}
	case !a.Absent && got != a.Equals:
		return &AssertionError{
			Type:     AssertHostState,
			Expected: fmt.Sprintf("%q = %q", a.Key, a.Equals),
			Actual:   fmt.Sprintf("%q = %q", a.Key, got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertHasRole(actx *AssertionContext, result *Result, a Assertion) error {
	role, err := ir.ParseRole(a.Role)
	if err != nil {
		return err
	}
	holds, err := actx.Timelock.HasRole(actx.Ctx, role, ir.Principal(a.Account))
	if err != nil {
		return fmt.Errorf("has role: %w", err)
	}
	if holds != *a.Holds {
		return &AssertionError{
			Type:     AssertHasRole,
			Expected: fmt.Sprintf("%s holds %s = %t", a.Account, role, *a.Holds),
			Actual:   fmt.Sprintf("%s holds %s = %t", a.Account, role, holds),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventCount counts events of one kind, optionally restricted to the
// events of a single operation.
func assertEventCount(actx *AssertionContext, result *Result, a Assertion) error {
	filter := store.EventFilter{Kinds: []store.EventKind{store.EventKind(a.Kind)}}
	if a.Op != "" {
		id, ok := actx.IDs[a.Op]
		if !ok {
			return fmt.Errorf("operation %q is not defined", a.Op)
		}
		filter.OperationID = id
	}
	events, err := actx.Store.ReadEvents(actx.Ctx, filter)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	if len(events) != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", *a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d events", len(events)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertReplay rebuilds state from the event log and compares it with the
// live tables.
func assertReplay(actx *AssertionContext, result *Result) error {
	report, err := actx.Timelock.VerifyReplay(actx.Ctx)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "event log replays to live state",
			Actual:   strings.Join(report.Mismatches, "; "),
			Trace:    result.Trace,
		}
	}
	return nil
}
