package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/dispatch"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/roles"
	"github.com/roach88/timelock/internal/store"
)

func TestUpdateDelay_DirectCallRejected(t *testing.T) {
	f := newFixture(t, 3600)
	ctx := context.Background()

	err := f.tl.UpdateDelay(ctx, 0)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)

	d, err := f.tl.GetMinDelay(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3600), d)
}

func TestUpdateDelay_HostHandlerRejected(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	// A host handler runs inside execute but is not a self-call, so it
	// does not carry the capability.
	f.reg.Register("sneaky", "lower", func(ctx context.Context, _ ir.IRArray) error {
		return f.tl.UpdateDelay(ctx, 0)
	})
	call := ir.NewCall("sneaky", "lower")

	_, err := f.tl.Schedule(ctx, proposer, call, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = f.tl.Execute(ctx, executor, call, ir.ZeroOperationID, ir.ZeroSalt)
	assert.ErrorIs(t, err, ErrCallFailed)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)
}

func TestUpdateDelay_ThroughExecute(t *testing.T) {
	f := newFixture(t, 3600)
	ctx := context.Background()
	call := ir.NewCall(DefaultSelf, SelectorUpdateDelay, ir.IRInt(7200))

	id, err := f.tl.Schedule(ctx, proposer, call, ir.ZeroOperationID, ir.ZeroSalt, 3600)
	require.NoError(t, err)
	f.clock.Advance(3600)
	_, err = f.tl.Execute(ctx, executor, call, ir.ZeroOperationID, ir.ZeroSalt)
	require.NoError(t, err)

	d, err := f.tl.GetMinDelay(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7200), d)

	changes := f.events(t, store.EventMinDelayChange)
	require.Len(t, changes, 2)
	assert.Equal(t, id, changes[1].OperationID)
	assert.Equal(t, 0, changes[1].CallIndex)
	assert.Equal(t, ir.IRInt(3600), changes[1].Payload["old_duration"])
	assert.Equal(t, ir.IRInt(7200), changes[1].Payload["new_duration"])

	assert.Equal(t, 7200.0, f.metricValue(t, "timelock_min_delay_seconds"))

	// The new floor applies to the next schedule.
	_, err = f.tl.Schedule(ctx, proposer, setCall("k", ir.IRInt(1)), ir.ZeroOperationID, ir.ZeroSalt, 3600)
	assert.ErrorIs(t, err, ErrInsufficientDelay)
}

func TestUpdateDelay_CustomSelf(t *testing.T) {
	f := newUninitialized(t)
	ctx := context.Background()
	tl := New(f.store, WithClock(f.clock), WithDispatcher(f.reg), WithSelf("0xtimelock"))
	require.NoError(t, tl.Initialize(ctx, InitParams{
		Proposers: []ir.Principal{proposer},
		Executors: []ir.Principal{executor},
	}))

	// A call to the default principal is an ordinary host call now.
	stale := ir.NewCall(DefaultSelf, SelectorUpdateDelay, ir.IRInt(9))
	_, err := tl.Schedule(ctx, proposer, stale, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, executor, stale, ir.ZeroOperationID, ir.ZeroSalt)
	assert.ErrorIs(t, err, dispatch.ErrNoHandler)

	call := ir.NewCall("0xtimelock", SelectorUpdateDelay, ir.IRInt(9))
	_, err = tl.Schedule(ctx, proposer, call, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = tl.Execute(ctx, executor, call, ir.ZeroOperationID, ir.ZeroSalt)
	require.NoError(t, err)

	d, err := tl.GetMinDelay(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), d)
}

func TestExecuteBatch_RollbackIncludesDelayChange(t *testing.T) {
	f := newFixture(t, 60)
	ctx := context.Background()
	calls := []ir.Call{
		setCall("k", ir.IRString("v")),
		ir.NewCall(DefaultSelf, SelectorUpdateDelay, ir.IRInt(1)),
		ir.NewCall(dispatch.StateTarget, "fail", ir.IRString("late failure")),
	}

	id, err := f.tl.ScheduleBatch(ctx, proposer, calls, ir.ZeroOperationID, ir.ZeroSalt, 60)
	require.NoError(t, err)
	f.clock.Advance(60)

	_, err = f.tl.ExecuteBatch(ctx, executor, calls, ir.ZeroOperationID, ir.ZeroSalt)
	require.ErrorIs(t, err, ErrCallFailed)

	d, err := f.tl.GetMinDelay(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), d, "min_delay change must roll back")
	assert.Empty(t, f.hostState(t))
	assert.Equal(t, ir.StateReady, f.state(t, id))
	assert.Len(t, f.events(t, store.EventMinDelayChange), 1)
	assert.Equal(t, 60.0, f.metricValue(t, "timelock_min_delay_seconds"))
}

func TestSelfCall_UpdateDelayBadArgs(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for _, call := range []ir.Call{
		ir.NewCall(DefaultSelf, SelectorUpdateDelay),
		ir.NewCall(DefaultSelf, SelectorUpdateDelay, ir.IRInt(-1)),
		ir.NewCall(DefaultSelf, SelectorUpdateDelay, ir.IRString("soon")),
		ir.NewCall(DefaultSelf, "self_destruct"),
	} {
		_, err := f.tl.Schedule(ctx, proposer, call, ir.ZeroOperationID, ir.ZeroSalt, 0)
		require.NoError(t, err)
		_, err = f.tl.Execute(ctx, executor, call, ir.ZeroOperationID, ir.ZeroSalt)
		assert.ErrorIs(t, err, ErrCallFailed, "%s%v", call.Selector, call.Args)
	}
}

func TestSelfCall_GrantAndRevokeRole(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	grant := ir.NewCall(DefaultSelf, SelectorGrantRole, ir.IRString("EXECUTOR"), ir.IRString("carol"))

	_, err := f.tl.Schedule(ctx, proposer, grant, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = f.tl.Execute(ctx, executor, grant, ir.ZeroOperationID, ir.ZeroSalt)
	require.NoError(t, err)

	has, err := f.tl.HasRole(ctx, ir.RoleExecutor, "carol")
	require.NoError(t, err)
	assert.True(t, has)

	granted := f.events(t, store.EventRoleGranted)
	last := granted[len(granted)-1]
	assert.Equal(t, ir.IRString(DefaultSelf), last.Payload["sender"])

	revoke := ir.NewCall(DefaultSelf, SelectorRevokeRole, ir.IRString("executor"), ir.IRString("carol"))
	_, err = f.tl.Schedule(ctx, proposer, revoke, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = f.tl.Execute(ctx, executor, revoke, ir.ZeroOperationID, ir.ZeroSalt)
	require.NoError(t, err)

	has, err = f.tl.HasRole(ctx, ir.RoleExecutor, "carol")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSelfCall_GrantFailsWithoutAdmin(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	// Governance gave up DEFAULT_ADMIN; self-calls can no longer manage roles.
	require.NoError(t, f.tl.RevokeRole(ctx, admin, ir.RoleDefaultAdmin, DefaultSelf))

	grant := ir.NewCall(DefaultSelf, SelectorGrantRole, ir.IRString("PROPOSER"), ir.IRString("carol"))
	_, err := f.tl.Schedule(ctx, proposer, grant, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = f.tl.Execute(ctx, executor, grant, ir.ZeroOperationID, ir.ZeroSalt)
	assert.ErrorIs(t, err, ErrCallFailed)
	assert.ErrorIs(t, err, roles.ErrMissingRole)
}
