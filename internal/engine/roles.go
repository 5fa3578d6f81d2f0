package engine

import (
	"context"
	"errors"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/roles"
	"github.com/roach88/timelock/internal/store"
)

// GrantRole grants role to account. sender must hold the role's admin role.
func (t *Timelock) GrantRole(ctx context.Context, sender ir.Principal, role ir.Role, account ir.Principal) error {
	err := t.update(ctx, false, func(tx *store.Tx, stamp roles.Stamp) error {
		return t.gate.GrantRole(ctx, tx, stamp, sender, role, account)
	})
	return t.reject("grant_role", roleError(err, role, sender))
}

// RevokeRole revokes role from account. sender must hold the role's admin
// role.
func (t *Timelock) RevokeRole(ctx context.Context, sender ir.Principal, role ir.Role, account ir.Principal) error {
	err := t.update(ctx, false, func(tx *store.Tx, stamp roles.Stamp) error {
		return t.gate.RevokeRole(ctx, tx, stamp, sender, role, account)
	})
	return t.reject("revoke_role", roleError(err, role, sender))
}

// RenounceRole gives up role held by account. sender must equal account.
func (t *Timelock) RenounceRole(ctx context.Context, sender ir.Principal, role ir.Role, account ir.Principal) error {
	err := t.update(ctx, false, func(tx *store.Tx, stamp roles.Stamp) error {
		return t.gate.RenounceRole(ctx, tx, stamp, sender, role, account)
	})
	return t.reject("renounce_role", roleError(err, role, sender))
}

// HasRole reports whether account holds role.
func (t *Timelock) HasRole(ctx context.Context, role ir.Role, account ir.Principal) (bool, error) {
	var has bool
	err := t.view(ctx, func(tx *store.Tx) error {
		var err error
		has, err = t.gate.HasRole(ctx, tx, role, account)
		return err
	})
	return has, err
}

// GetRoleAdmin returns the role that administers role.
func (t *Timelock) GetRoleAdmin(ctx context.Context, role ir.Role) (ir.Role, error) {
	var admin ir.Role
	err := t.view(ctx, func(tx *store.Tx) error {
		var err error
		admin, err = t.gate.GetRoleAdmin(ctx, tx, role)
		return err
	})
	return admin, err
}

// RoleMembers lists the holders of role.
func (t *Timelock) RoleMembers(ctx context.Context, role ir.Role) ([]ir.Principal, error) {
	var members []ir.Principal
	err := t.view(ctx, func(tx *store.Tx) error {
		var err error
		members, err = t.gate.Members(ctx, tx, role)
		return err
	})
	return members, err
}

// roleError turns role gate refusals into Unauthorized, keeping the gate
// error as the cause so errors.Is matches both.
func roleError(err error, role ir.Role, sender ir.Principal) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, roles.ErrMissingRole) || errors.Is(err, roles.ErrBadConfirmation) {
		e := unauthorized(role, sender)
		e.Message = err.Error()
		e.Err = err
		return e
	}
	return err
}
