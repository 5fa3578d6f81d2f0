package engine

import (
	"context"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/roles"
	"github.com/roach88/timelock/internal/store"
)

// Selectors handled when a call targets the timelock itself.
const (
	SelectorUpdateDelay = "update_delay"
	SelectorGrantRole   = "grant_role"
	SelectorRevokeRole  = "revoke_role"
)

// selfCall is the capability execute installs while it dispatches a call
// whose target is the timelock. Only this package can construct one, so
// holding it in ctx proves the call came through execute.
type selfCall struct {
	tx    *store.Tx
	stamp roles.Stamp
	id    ir.OperationID
	index int

	// newMinDelay is set when update_delay ran, for publishing after commit.
	newMinDelay *uint64
}

type selfCallKey struct{}

func (t *Timelock) selfDispatch(ctx context.Context, sc *selfCall, call ir.Call) error {
	capCtx := context.WithValue(ctx, selfCallKey{}, sc)

	switch call.Selector {
	case SelectorUpdateDelay:
		if len(call.Args) != 1 {
			return fmt.Errorf("update_delay wants 1 arg, got %d", len(call.Args))
		}
		d, ok := call.Args[0].(ir.IRInt)
		if !ok || d < 0 {
			return fmt.Errorf("update_delay: delay must be a non-negative integer")
		}
		return t.UpdateDelay(capCtx, uint64(d))

	case SelectorGrantRole, SelectorRevokeRole:
		role, account, err := roleArgs(call)
		if err != nil {
			return err
		}
		if call.Selector == SelectorGrantRole {
			return t.gate.GrantRole(capCtx, sc.tx, sc.stamp, t.self, role, account)
		}
		return t.gate.RevokeRole(capCtx, sc.tx, sc.stamp, t.self, role, account)

	default:
		return fmt.Errorf("unknown self-call selector %q", call.Selector)
	}
}

func roleArgs(call ir.Call) (ir.Role, ir.Principal, error) {
	if len(call.Args) != 2 {
		return "", "", fmt.Errorf("%s wants (role, account), got %d args", call.Selector, len(call.Args))
	}
	rawRole, ok1 := call.Args[0].(ir.IRString)
	account, ok2 := call.Args[1].(ir.IRString)
	if !ok1 || !ok2 || account == "" {
		return "", "", fmt.Errorf("%s wants (role, account) strings", call.Selector)
	}
	role, err := ir.ParseRole(string(rawRole))
	if err != nil {
		return "", "", err
	}
	return role, ir.Principal(account), nil
}

// UpdateDelay sets min_delay. It succeeds only while execute is
// dispatching a call whose target is the timelock itself; any other
// invocation fails with ErrUnauthorizedCaller.
//
// Governance changes the delay by scheduling a call to
// (self, "update_delay", [new]) and executing it once Ready.
func (t *Timelock) UpdateDelay(ctx context.Context, newDelay uint64) error {
	sc, ok := ctx.Value(selfCallKey{}).(*selfCall)
	if !ok || sc == nil {
		return t.reject("update_delay", newError(CodeUnauthorizedCaller, "update_delay must be executed by the timelock"))
	}

	old, err := sc.tx.MinDelay(ctx)
	if err != nil {
		return err
	}
	if err := sc.tx.SetMinDelay(ctx, newDelay); err != nil {
		return err
	}
	if err := emitMinDelayChange(ctx, sc.tx, sc.stamp, sc.id, sc.index, old, newDelay); err != nil {
		return err
	}
	sc.newMinDelay = &newDelay

	t.logger.Info("min delay updated", "operation_id", sc.id, "old", old, "new", newDelay)
	return nil
}
