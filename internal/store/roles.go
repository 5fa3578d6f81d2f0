package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// HasMember reports whether account holds role.
func (t *Tx) HasMember(ctx context.Context, role ir.Role, account ir.Principal) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `
		SELECT 1 FROM role_members WHERE role = ? AND account = ?
	`, string(role), string(account)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has member: %w", err)
	}
	return true, nil
}

// AddMember grants role to account. Returns added=false if it was held.
func (t *Tx) AddMember(ctx context.Context, role ir.Role, account ir.Principal) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO role_members (role, account) VALUES (?, ?)
		ON CONFLICT(role, account) DO NOTHING
	`, string(role), string(account))
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add member: rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveMember revokes role from account. Returns removed=false if it was
// not held.
func (t *Tx) RemoveMember(ctx context.Context, role ir.Role, account ir.Principal) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM role_members WHERE role = ? AND account = ?
	`, string(role), string(account))
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove member: rows affected: %w", err)
	}
	return n > 0, nil
}

// Members lists the holders of role in binary order.
func (t *Tx) Members(ctx context.Context, role ir.Role) ([]ir.Principal, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT account FROM role_members WHERE role = ?
		ORDER BY account COLLATE BINARY ASC
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := []ir.Principal{}
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, ir.Principal(account))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// RoleAdmin returns the admin role configured for role, if any.
func (t *Tx) RoleAdmin(ctx context.Context, role ir.Role) (ir.Role, bool, error) {
	var admin string
	err := t.tx.QueryRowContext(ctx, `
		SELECT admin_role FROM role_admins WHERE role = ?
	`, string(role)).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("role admin: %w", err)
	}
	return ir.Role(admin), true, nil
}

// SetRoleAdmin configures the admin role of role.
func (t *Tx) SetRoleAdmin(ctx context.Context, role, admin ir.Role) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO role_admins (role, admin_role) VALUES (?, ?)
		ON CONFLICT(role) DO UPDATE SET admin_role = excluded.admin_role
	`, string(role), string(admin))
	if err != nil {
		return fmt.Errorf("set role admin: %w", err)
	}
	return nil
}
