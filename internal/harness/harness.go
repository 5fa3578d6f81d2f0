package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
	"github.com/roach88/timelock/internal/testutil"
)

// Harness drives one scenario against a real timelock backed by an
// in-memory store, a manual clock and sequential correlation ids.
type Harness struct {
	store    *store.Store
	timelock *engine.Timelock
	clock    *testutil.ManualClock
	logger   *slog.Logger
	scenario *Scenario

	ids map[string]ir.OperationID
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Step expectations and
// final assertions that fail are collected in Result.Errors; the returned
// error is reserved for scenarios that cannot run at all.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.StartTime
	if start == 0 {
		start = DefaultStartTime
	}

	h := &Harness{
		store:    st,
		clock:    testutil.NewManualClock(start),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		scenario: scenario,
		ids:      make(map[string]ir.OperationID),
	}
	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(testutil.NewSequentialIDGenerator(scenario.Name)),
	}
	if scenario.Self != "" {
		opts = append(opts, engine.WithSelf(ir.Principal(scenario.Self)))
	}
	h.timelock = engine.New(st, opts...)

	ctx := context.Background()
	if err := h.timelock.Initialize(ctx, initParams(scenario)); err != nil {
		return nil, fmt.Errorf("failed to initialize timelock: %w", err)
	}

	for label := range scenario.Operations {
		if _, err := h.resolve(label, nil); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i+1, step, result); err != nil {
			return nil, err
		}
	}

	if err := h.collectFinal(ctx, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Timelock: h.timelock,
		Store:    st,
		IDs:      h.ids,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func initParams(s *Scenario) engine.InitParams {
	p := engine.InitParams{
		MinDelay: s.MinDelay,
		Admin:    ir.Principal(s.Admin),
	}
	for _, name := range s.Proposers {
		p.Proposers = append(p.Proposers, ir.Principal(name))
	}
	for _, name := range s.Executors {
		p.Executors = append(p.Executors, ir.Principal(name))
	}
	return p
}

// resolve computes the id of a labeled operation, resolving its predecessor
// chain first. seen guards against predecessor cycles.
func (h *Harness) resolve(label string, seen []string) (ir.OperationID, error) {
	if id, ok := h.ids[label]; ok {
		return id, nil
	}
	for _, s := range seen {
		if s == label {
			return ir.OperationID{}, fmt.Errorf("predecessor cycle: %s", strings.Join(append(seen, label), " -> "))
		}
	}
	op, ok := h.scenario.Operations[label]
	if !ok {
		return ir.OperationID{}, fmt.Errorf("unknown operation %q", label)
	}

	var pred ir.OperationID
	if op.Predecessor != "" {
		var err error
		if pred, err = h.resolve(op.Predecessor, append(seen, label)); err != nil {
			return ir.OperationID{}, err
		}
	}
	calls, err := op.calls()
	if err != nil {
		return ir.OperationID{}, fmt.Errorf("operation %q: %w", label, err)
	}

	var id ir.OperationID
	if op.Batch {
		id, err = ir.HashOperationBatch(calls, pred, saltOf(op))
	} else {
		id, err = ir.HashOperation(calls[0], pred, saltOf(op))
	}
	if err != nil {
		return ir.OperationID{}, fmt.Errorf("operation %q: %w", label, err)
	}
	h.ids[label] = id
	return id, nil
}

func saltOf(op Operation) ir.Salt {
	if op.Salt == "" {
		return ir.Salt{}
	}
	return ir.SaltFromString(op.Salt)
}

// runStep moves the clock, performs the step's action and checks its
// expectations. n is the 1-based step number.
func (h *Harness) runStep(ctx context.Context, n int, step Step, result *Result) error {
	switch {
	case step.At != 0:
		h.clock.Set(step.At)
	case step.Advance != 0:
		h.clock.Advance(step.Advance)
	}

	if step.Action == "" {
		result.addTrace(TraceEvent{
			Step:    n,
			Action:  ActionAdvance,
			Outcome: OutcomeOK,
			Time:    h.clock.Now(),
		})
		return nil
	}

	outcome := OutcomeOK
	if err := h.perform(ctx, step); err != nil {
		if !engine.IsRejection(err) {
			return fmt.Errorf("step %d (%s): %w", n, step.Action, err)
		}
		outcome = string(engine.CodeOf(err))
	}

	ev := TraceEvent{
		Step:    n,
		Action:  step.Action,
		Caller:  step.Caller,
		Op:      step.Op,
		Outcome: outcome,
		Time:    h.clock.Now(),
	}
	if step.Role != "" {
		role, _ := ir.ParseRole(step.Role)
		ev.Role = string(role)
		ev.Account = step.Account
	}
	if step.Op != "" {
		state, err := h.timelock.GetOperationState(ctx, h.ids[step.Op])
		if err != nil {
			return fmt.Errorf("step %d: read state: %w", n, err)
		}
		ev.State = state.String()
	}
	result.addTrace(ev)

	h.logger.Info("scenario step completed",
		"step", n,
		"action", step.Action,
		"op", step.Op,
		"outcome", outcome,
	)

	if step.Expect != "" && step.Expect != outcome {
		result.AddError(fmt.Sprintf("step %d (%s %s): expected %s, got %s", n, step.Action, step.Op, step.Expect, outcome))
	}
	if step.Then != "" && !strings.EqualFold(step.Then, ev.State) {
		result.AddError(fmt.Sprintf("step %d (%s %s): expected state %s, got %s", n, step.Action, step.Op, step.Then, ev.State))
	}
	return nil
}

func (h *Harness) perform(ctx context.Context, step Step) error {
	caller := ir.Principal(step.Caller)

	switch step.Action {
	case ActionSchedule, ActionExecute:
		op := h.scenario.Operations[step.Op]
		calls, err := op.calls()
		if err != nil {
			return err
		}
		var pred ir.OperationID
		if op.Predecessor != "" {
			pred = h.ids[op.Predecessor]
		}
		salt := saltOf(op)

		if step.Action == ActionSchedule {
			if op.Batch {
				_, err = h.timelock.ScheduleBatch(ctx, caller, calls, pred, salt, *step.Delay)
			} else {
				_, err = h.timelock.Schedule(ctx, caller, calls[0], pred, salt, *step.Delay)
			}
			return err
		}
		if op.Batch {
			_, err = h.timelock.ExecuteBatch(ctx, caller, calls, pred, salt)
		} else {
			_, err = h.timelock.Execute(ctx, caller, calls[0], pred, salt)
		}
		return err

	case ActionCancel:
		return h.timelock.Cancel(ctx, caller, h.ids[step.Op])

	case ActionUpdateDelay:
		return h.timelock.UpdateDelay(ctx, *step.Delay)

	case ActionGrantRole, ActionRevokeRole, ActionRenounceRole:
		role, err := ir.ParseRole(step.Role)
		if err != nil {
			return err
		}
		account := ir.Principal(step.Account)
		switch step.Action {
		case ActionGrantRole:
			return h.timelock.GrantRole(ctx, caller, role, account)
		case ActionRevokeRole:
			return h.timelock.RevokeRole(ctx, caller, role, account)
		default:
			return h.timelock.RenounceRole(ctx, caller, role, account)
		}
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func (h *Harness) collectFinal(ctx context.Context, result *Result) error {
	minDelay, err := h.timelock.GetMinDelay(ctx)
	if err != nil {
		return fmt.Errorf("read min delay: %w", err)
	}
	result.MinDelay = minDelay

	for label, id := range h.ids {
		state, err := h.timelock.GetOperationState(ctx, id)
		if err != nil {
			return fmt.Errorf("read state of %s: %w", label, err)
		}
		result.States[label] = state.String()
	}

	host, err := h.timelock.HostState(ctx)
	if err != nil {
		return fmt.Errorf("read host state: %w", err)
	}
	result.HostState = host
	return nil
}
