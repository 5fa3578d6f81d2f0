package engine

import (
	"context"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// GetOperationState returns the lifecycle state of id at the current
// clock reading. Unknown ids are Unset.
func (t *Timelock) GetOperationState(ctx context.Context, id ir.OperationID) (ir.OperationState, error) {
	ts, err := t.GetTimestamp(ctx, id)
	if err != nil {
		return ir.StateUnset, err
	}
	return DeriveState(ts, t.clock.Now()), nil
}

// GetTimestamp returns the raw ledger value for id: 0 when unset,
// ir.DoneTimestamp when done, otherwise the ready time.
func (t *Timelock) GetTimestamp(ctx context.Context, id ir.OperationID) (uint64, error) {
	var ts uint64
	err := t.view(ctx, func(tx *store.Tx) error {
		var err error
		ts, err = tx.GetTimestamp(ctx, id)
		return err
	})
	return ts, err
}

// GetMinDelay returns the current minimum delay.
func (t *Timelock) GetMinDelay(ctx context.Context) (uint64, error) {
	var d uint64
	err := t.view(ctx, func(tx *store.Tx) error {
		var err error
		d, err = tx.MinDelay(ctx)
		return err
	})
	return d, err
}

// IsOperation reports whether id is anything but Unset.
func (t *Timelock) IsOperation(ctx context.Context, id ir.OperationID) (bool, error) {
	s, err := t.GetOperationState(ctx, id)
	return s != ir.StateUnset, err
}

// IsOperationPending reports whether id is Waiting or Ready.
func (t *Timelock) IsOperationPending(ctx context.Context, id ir.OperationID) (bool, error) {
	s, err := t.GetOperationState(ctx, id)
	return s.Pending(), err
}

// IsOperationReady reports whether id is Ready.
func (t *Timelock) IsOperationReady(ctx context.Context, id ir.OperationID) (bool, error) {
	s, err := t.GetOperationState(ctx, id)
	return s == ir.StateReady, err
}

// IsOperationDone reports whether id is Done.
func (t *Timelock) IsOperationDone(ctx context.Context, id ir.OperationID) (bool, error) {
	s, err := t.GetOperationState(ctx, id)
	return s == ir.StateDone, err
}

// HashOperation returns the id a single-call operation would get.
func (t *Timelock) HashOperation(call ir.Call, predecessor ir.OperationID, salt ir.Salt) (ir.OperationID, error) {
	return ir.HashOperation(call, predecessor, salt)
}

// HashOperationBatch returns the id a batch operation would get.
func (t *Timelock) HashOperationBatch(calls []ir.Call, predecessor ir.OperationID, salt ir.Salt) (ir.OperationID, error) {
	return ir.HashOperationBatch(calls, predecessor, salt)
}

// Operations lists every ledger entry with its state at the current
// clock reading.
func (t *Timelock) Operations(ctx context.Context) ([]OperationStatus, error) {
	now := t.clock.Now()
	var out []OperationStatus
	err := t.view(ctx, func(tx *store.Tx) error {
		records, err := tx.ListOperations(ctx)
		if err != nil {
			return err
		}
		out = make([]OperationStatus, len(records))
		for i, r := range records {
			out[i] = OperationStatus{ID: r.ID, Timestamp: r.ReadyTimestamp, State: DeriveState(r.ReadyTimestamp, now)}
		}
		return nil
	})
	return out, err
}

// OperationStatus is one ledger entry with its derived state.
type OperationStatus struct {
	ID        ir.OperationID    `json:"id"`
	Timestamp uint64            `json:"timestamp"`
	State     ir.OperationState `json:"state"`
}

// HostState returns the built-in state host's key/value table.
func (t *Timelock) HostState(ctx context.Context) (map[string]string, error) {
	var state map[string]string
	err := t.view(ctx, func(tx *store.Tx) error {
		var err error
		state, err = tx.ListState(ctx)
		return err
	})
	return state, err
}
