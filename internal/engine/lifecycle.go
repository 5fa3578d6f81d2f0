package engine

import (
	"context"
	"math"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/roles"
	"github.com/roach88/timelock/internal/store"
)

// DeriveState maps a ledger timestamp and the current time to a lifecycle
// state. Ready is inclusive of the boundary: ts == now is Ready.
func DeriveState(ts, now uint64) ir.OperationState {
	switch {
	case ts == 0:
		return ir.StateUnset
	case ts == ir.DoneTimestamp:
		return ir.StateDone
	case ts > now:
		return ir.StateWaiting
	default:
		return ir.StateReady
	}
}

// Schedule queues a single call to become executable after delay seconds.
// The caller must hold PROPOSER.
func (t *Timelock) Schedule(ctx context.Context, caller ir.Principal, call ir.Call, predecessor ir.OperationID, salt ir.Salt, delay uint64) (ir.OperationID, error) {
	if err := validateCalls([]ir.Call{call}); err != nil {
		return ir.ZeroOperationID, t.reject("schedule", err)
	}
	id, err := ir.HashOperation(call, predecessor, salt)
	if err != nil {
		return ir.ZeroOperationID, err
	}
	return id, t.schedule(ctx, caller, id, []ir.Call{call}, predecessor, salt, delay)
}

// ScheduleBatch queues an ordered batch of calls under one id.
// The caller must hold PROPOSER.
func (t *Timelock) ScheduleBatch(ctx context.Context, caller ir.Principal, calls []ir.Call, predecessor ir.OperationID, salt ir.Salt, delay uint64) (ir.OperationID, error) {
	if err := validateCalls(calls); err != nil {
		return ir.ZeroOperationID, t.reject("schedule_batch", err)
	}
	id, err := ir.HashOperationBatch(calls, predecessor, salt)
	if err != nil {
		return ir.ZeroOperationID, err
	}
	return id, t.schedule(ctx, caller, id, calls, predecessor, salt, delay)
}

func (t *Timelock) schedule(ctx context.Context, caller ir.Principal, id ir.OperationID, calls []ir.Call, predecessor ir.OperationID, salt ir.Salt, delay uint64) error {
	var readyAt uint64
	err := t.update(ctx, true, func(tx *store.Tx, stamp roles.Stamp) error {
		ok, err := t.gate.HasRole(ctx, tx, ir.RoleProposer, caller)
		if err != nil {
			return err
		}
		if !ok {
			return withOperation(unauthorized(ir.RoleProposer, caller), id)
		}

		ts, err := tx.GetTimestamp(ctx, id)
		if err != nil {
			return err
		}
		if state := DeriveState(ts, stamp.Timestamp); state != ir.StateUnset {
			return withOperation(newError(CodeAlreadyScheduled, "operation is %s", state), id)
		}

		minDelay, err := tx.MinDelay(ctx)
		if err != nil {
			return err
		}
		if delay < minDelay {
			return withOperation(newError(CodeInsufficientDelay, "delay %d below minimum %d", delay, minDelay), id)
		}

		if delay > math.MaxInt64-stamp.Timestamp {
			return withOperation(newError(CodeDelayOverflow, "now %d plus delay %d overflows", stamp.Timestamp, delay), id)
		}
		readyAt = stamp.Timestamp + delay
		if readyAt <= ir.DoneTimestamp {
			// 0 and 1 are reserved ledger values; only a clock stuck at
			// the epoch can produce them.
			return withOperation(newError(CodeDelayOverflow, "ready timestamp %d collides with a reserved value", readyAt), id)
		}

		if err := tx.SetTimestamp(ctx, id, readyAt); err != nil {
			return err
		}
		for i, call := range calls {
			_, err := tx.AppendEvent(ctx, store.Event{
				Kind:          store.EventCallScheduled,
				OperationID:   id,
				CallIndex:     i,
				Timestamp:     stamp.Timestamp,
				CorrelationID: stamp.CorrelationID,
				Payload: ir.IRObject{
					"target":      ir.IRString(call.Target),
					"selector":    ir.IRString(call.Selector),
					"args":        argsOrEmpty(call.Args),
					"predecessor": ir.IRString(predecessor.String()),
					"delay":       ir.IRInt(delay),
				},
			})
			if err != nil {
				return err
			}
		}
		if !salt.IsZero() {
			_, err := tx.AppendEvent(ctx, store.Event{
				Kind:          store.EventCallSalt,
				OperationID:   id,
				CallIndex:     store.NoCallIndex,
				Timestamp:     stamp.Timestamp,
				CorrelationID: stamp.CorrelationID,
				Payload:       ir.IRObject{"salt": ir.IRString(salt.String())},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return t.reject("schedule", err)
	}

	t.metrics.Scheduled()
	t.logger.Info("operation scheduled",
		"operation_id", id,
		"caller", caller,
		"calls", len(calls),
		"delay", delay,
		"ready_at", readyAt)
	return nil
}

// Cancel returns a Waiting or Ready operation to Unset. The caller must
// hold CANCELLER. The same (calls, predecessor, salt) may be scheduled
// again afterwards.
func (t *Timelock) Cancel(ctx context.Context, caller ir.Principal, id ir.OperationID) error {
	err := t.update(ctx, true, func(tx *store.Tx, stamp roles.Stamp) error {
		ok, err := t.gate.HasRole(ctx, tx, ir.RoleCanceller, caller)
		if err != nil {
			return err
		}
		if !ok {
			return withOperation(unauthorized(ir.RoleCanceller, caller), id)
		}

		ts, err := tx.GetTimestamp(ctx, id)
		if err != nil {
			return err
		}
		if !DeriveState(ts, stamp.Timestamp).Pending() {
			return withOperation(newError(CodeOperationNotCancelable, "operation is %s", DeriveState(ts, stamp.Timestamp)), id)
		}

		if err := tx.ClearTimestamp(ctx, id); err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, store.Event{
			Kind:          store.EventCancelled,
			OperationID:   id,
			CallIndex:     store.NoCallIndex,
			Timestamp:     stamp.Timestamp,
			CorrelationID: stamp.CorrelationID,
		})
		return err
	})
	if err != nil {
		return t.reject("cancel", err)
	}

	t.metrics.Cancelled()
	t.logger.Info("operation cancelled", "operation_id", id, "caller", caller)
	return nil
}

// Execute runs a Ready single-call operation. The caller must hold
// EXECUTOR unless the executor role is open.
func (t *Timelock) Execute(ctx context.Context, caller ir.Principal, call ir.Call, predecessor ir.OperationID, salt ir.Salt) (ir.OperationID, error) {
	if err := validateCalls([]ir.Call{call}); err != nil {
		return ir.ZeroOperationID, t.reject("execute", err)
	}
	id, err := ir.HashOperation(call, predecessor, salt)
	if err != nil {
		return ir.ZeroOperationID, err
	}
	return id, t.execute(ctx, caller, id, []ir.Call{call}, predecessor)
}

// ExecuteBatch runs a Ready batch. Calls run in order and stop at the
// first failure, in which case every effect of the batch is rolled back
// and the operation stays Ready.
func (t *Timelock) ExecuteBatch(ctx context.Context, caller ir.Principal, calls []ir.Call, predecessor ir.OperationID, salt ir.Salt) (ir.OperationID, error) {
	if err := validateCalls(calls); err != nil {
		return ir.ZeroOperationID, t.reject("execute_batch", err)
	}
	id, err := ir.HashOperationBatch(calls, predecessor, salt)
	if err != nil {
		return ir.ZeroOperationID, err
	}
	return id, t.execute(ctx, caller, id, calls, predecessor)
}

func (t *Timelock) execute(ctx context.Context, caller ir.Principal, id ir.OperationID, calls []ir.Call, predecessor ir.OperationID) error {
	var sc *selfCall
	err := t.update(ctx, true, func(tx *store.Tx, stamp roles.Stamp) error {
		mode, err := t.gate.ExecutorMode(ctx, tx)
		if err != nil {
			return err
		}
		if mode != roles.ExecutorOpen {
			ok, err := t.gate.HasRole(ctx, tx, ir.RoleExecutor, caller)
			if err != nil {
				return err
			}
			if !ok {
				return withOperation(unauthorized(ir.RoleExecutor, caller), id)
			}
		}

		ts, err := tx.GetTimestamp(ctx, id)
		if err != nil {
			return err
		}
		if state := DeriveState(ts, stamp.Timestamp); state != ir.StateReady {
			return withOperation(newError(CodeNotReady, "operation is %s", state), id)
		}

		if !predecessor.IsZero() {
			pts, err := tx.GetTimestamp(ctx, predecessor)
			if err != nil {
				return err
			}
			if state := DeriveState(pts, stamp.Timestamp); state != ir.StateDone {
				return withOperation(newError(CodePredecessorNotDone, "predecessor %s is %s", predecessor, state), id)
			}
		}

		sc = &selfCall{tx: tx, stamp: stamp, id: id}
		for i, call := range calls {
			sc.index = i
			if err := t.dispatch(ctx, sc, call); err != nil {
				t.metrics.CallDispatched(false)
				e := withOperation(newError(CodeCallFailed, "%s.%s failed", call.Target, call.Selector), id)
				e.CallIndex = i
				e.Err = err
				return e
			}
			t.metrics.CallDispatched(true)

			_, err := tx.AppendEvent(ctx, store.Event{
				Kind:          store.EventCallExecuted,
				OperationID:   id,
				CallIndex:     i,
				Timestamp:     stamp.Timestamp,
				CorrelationID: stamp.CorrelationID,
				Payload: ir.IRObject{
					"target":   ir.IRString(call.Target),
					"selector": ir.IRString(call.Selector),
					"args":     argsOrEmpty(call.Args),
				},
			})
			if err != nil {
				return err
			}
		}

		// A call may have touched the ledger through the transaction;
		// the operation must still be Ready to be consumed.
		ts, err = tx.GetTimestamp(ctx, id)
		if err != nil {
			return err
		}
		if state := DeriveState(ts, stamp.Timestamp); state != ir.StateReady {
			return withOperation(newError(CodeNotReady, "operation became %s during execution", state), id)
		}
		return tx.SetTimestamp(ctx, id, ir.DoneTimestamp)
	})
	if err != nil {
		return t.reject("execute", err)
	}

	if sc != nil && sc.newMinDelay != nil {
		t.metrics.SetMinDelay(*sc.newMinDelay)
	}
	t.metrics.Executed()
	t.logger.Info("operation executed", "operation_id", id, "caller", caller, "calls", len(calls))
	return nil
}

// dispatch routes one call: calls targeting the timelock are self-calls,
// everything else goes to the host dispatcher with the transaction in ctx.
func (t *Timelock) dispatch(ctx context.Context, sc *selfCall, call ir.Call) error {
	if call.Target == t.self {
		return t.selfDispatch(ctx, sc, call)
	}
	return t.dispatcher.Invoke(store.ContextWithTx(ctx, sc.tx), call)
}

func validateCalls(calls []ir.Call) error {
	if len(calls) == 0 {
		return newError(CodeEmptyBatch, "batch has no calls")
	}
	for i, call := range calls {
		if err := call.Validate(); err != nil {
			e := newError(CodeInvalidCall, "call %d is invalid", i)
			e.CallIndex = i
			e.Err = err
			return e
		}
	}
	return nil
}

func argsOrEmpty(args ir.IRArray) ir.IRArray {
	if args == nil {
		return ir.IRArray{}
	}
	return args
}
