package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/roles"
)

func TestRoleSurface_GrantRevoke(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	err := f.tl.GrantRole(ctx, stranger, ir.RoleProposer, stranger)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, roles.ErrMissingRole)

	require.NoError(t, f.tl.GrantRole(ctx, admin, ir.RoleProposer, "carol"))
	members, err := f.tl.RoleMembers(ctx, ir.RoleProposer)
	require.NoError(t, err)
	assert.Equal(t, []ir.Principal{proposer, "carol"}, members)

	// Granting PROPOSER directly does not imply CANCELLER; only
	// initialization pairs them.
	has, err := f.tl.HasRole(ctx, ir.RoleCanceller, "carol")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, f.tl.RevokeRole(ctx, admin, ir.RoleProposer, "carol"))
	has, err = f.tl.HasRole(ctx, ir.RoleProposer, "carol")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRoleSurface_Renounce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	err := f.tl.RenounceRole(ctx, admin, ir.RoleExecutor, executor)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, roles.ErrBadConfirmation)

	require.NoError(t, f.tl.RenounceRole(ctx, executor, ir.RoleExecutor, executor))

	_, err = f.tl.Schedule(ctx, proposer, setCall("k", ir.IRInt(1)), ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	_, err = f.tl.Execute(ctx, executor, setCall("k", ir.IRInt(1)), ir.ZeroOperationID, ir.ZeroSalt)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRoleSurface_OpenExecutorByGrant(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	call := setCall("k", ir.IRInt(1))

	_, err := f.tl.Schedule(ctx, proposer, call, ir.ZeroOperationID, ir.ZeroSalt, 0)
	require.NoError(t, err)
	require.NoError(t, f.tl.GrantRole(ctx, admin, ir.RoleExecutor, ir.OpenPrincipal))

	_, err = f.tl.Execute(ctx, stranger, call, ir.ZeroOperationID, ir.ZeroSalt)
	assert.NoError(t, err)
}

func TestRoleSurface_GetRoleAdmin(t *testing.T) {
	f := newFixture(t, 0)

	got, err := f.tl.GetRoleAdmin(context.Background(), ir.RoleCanceller)
	require.NoError(t, err)
	assert.Equal(t, ir.RoleDefaultAdmin, got)
}

func TestRoleError_PassesStorageErrors(t *testing.T) {
	other := errors.New("disk on fire")
	assert.Same(t, other, roleError(other, ir.RoleProposer, "x"))
	assert.Nil(t, roleError(nil, ir.RoleProposer, "x"))
}
