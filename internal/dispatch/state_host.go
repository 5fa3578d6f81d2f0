package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// StateTarget is the principal of the built-in key/value host.
const StateTarget ir.Principal = "state"

var (
	// ErrHostFailure is returned by state.fail.
	ErrHostFailure = errors.New("host call failed")

	// ErrNoTransaction is returned when a state call runs outside an
	// execute transaction.
	ErrNoTransaction = errors.New("state host requires an active transaction")

	// ErrBadArgs is returned when a call's arguments do not match its
	// selector.
	ErrBadArgs = errors.New("bad arguments")
)

// RegisterStateHost installs the built-in "state" target on r:
//
//	state.set(key, value)  writes key
//	state.delete(key)      removes key
//	state.fail(reason)     always fails
//
// Writes go through the transaction carried in ctx, so they roll back
// with the execute that made them.
func RegisterStateHost(r *Registry) {
	r.Register(StateTarget, "set", stateSet)
	r.Register(StateTarget, "delete", stateDelete)
	r.Register(StateTarget, "fail", stateFail)
}

func stateSet(ctx context.Context, args ir.IRArray) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: state.set wants (key, value), got %d args", ErrBadArgs, len(args))
	}
	key, ok := args[0].(ir.IRString)
	if !ok {
		return fmt.Errorf("%w: state.set key must be a string", ErrBadArgs)
	}
	value, err := FormatValue(args[1])
	if err != nil {
		return err
	}
	tx, ok := store.TxFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	return tx.PutState(ctx, string(key), value)
}

func stateDelete(ctx context.Context, args ir.IRArray) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: state.delete wants (key), got %d args", ErrBadArgs, len(args))
	}
	key, ok := args[0].(ir.IRString)
	if !ok {
		return fmt.Errorf("%w: state.delete key must be a string", ErrBadArgs)
	}
	tx, ok := store.TxFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	return tx.DeleteState(ctx, string(key))
}

func stateFail(_ context.Context, args ir.IRArray) error {
	reason := "fail"
	if len(args) > 0 {
		if s, ok := args[0].(ir.IRString); ok {
			reason = string(s)
		}
	}
	return fmt.Errorf("%w: %s", ErrHostFailure, reason)
}

// FormatValue renders a stored host value: strings verbatim, everything
// else as canonical JSON.
func FormatValue(v ir.IRValue) (string, error) {
	if s, ok := v.(ir.IRString); ok {
		return string(s), nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("format value: %w", err)
	}
	return string(data), nil
}
