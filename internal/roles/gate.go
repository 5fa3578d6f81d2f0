package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

var (
	// ErrMissingRole is returned when the sender lacks the admin role
	// required to grant or revoke.
	ErrMissingRole = errors.New("missing role")

	// ErrBadConfirmation is returned when an account renounces a role on
	// behalf of someone else.
	ErrBadConfirmation = errors.New("can only renounce roles for self")
)

// ExecutorMode reports whether the executor role is open to everyone.
type ExecutorMode int

const (
	// ExecutorRestricted means only EXECUTOR members may execute.
	ExecutorRestricted ExecutorMode = iota
	// ExecutorOpen means ir.OpenPrincipal holds EXECUTOR.
	ExecutorOpen
)

func (m ExecutorMode) String() string {
	if m == ExecutorOpen {
		return "open"
	}
	return "restricted"
}

// Stamp carries the clock reading and correlation id written into the
// events a role change emits.
type Stamp struct {
	Timestamp     uint64
	CorrelationID string
}

// Gate answers role queries and applies role changes.
type Gate struct {
	logger *slog.Logger
}

// NewGate returns a Gate that logs role changes to logger.
// A nil logger uses slog.Default().
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// HasRole reports whether account holds role.
func (g *Gate) HasRole(ctx context.Context, tx *store.Tx, role ir.Role, account ir.Principal) (bool, error) {
	return tx.HasMember(ctx, role, account)
}

// ExecutorMode reports whether EXECUTOR has been granted to the open
// principal.
func (g *Gate) ExecutorMode(ctx context.Context, tx *store.Tx) (ExecutorMode, error) {
	open, err := tx.HasMember(ctx, ir.RoleExecutor, ir.OpenPrincipal)
	if err != nil {
		return ExecutorRestricted, err
	}
	if open {
		return ExecutorOpen, nil
	}
	return ExecutorRestricted, nil
}

// GetRoleAdmin returns the role that administers role.
func (g *Gate) GetRoleAdmin(ctx context.Context, tx *store.Tx, role ir.Role) (ir.Role, error) {
	admin, ok, err := tx.RoleAdmin(ctx, role)
	if err != nil {
		return "", err
	}
	if !ok {
		return ir.RoleDefaultAdmin, nil
	}
	return admin, nil
}

// Members lists the holders of role.
func (g *Gate) Members(ctx context.Context, tx *store.Tx, role ir.Role) ([]ir.Principal, error) {
	return tx.Members(ctx, role)
}

// GrantRole grants role to account if sender holds the role's admin role.
// Granting a role that is already held is a no-op and emits nothing.
func (g *Gate) GrantRole(ctx context.Context, tx *store.Tx, stamp Stamp, sender ir.Principal, role ir.Role, account ir.Principal) error {
	if err := g.checkAdmin(ctx, tx, sender, role); err != nil {
		return err
	}
	return g.Grant(ctx, tx, stamp, sender, role, account)
}

// RevokeRole revokes role from account if sender holds the role's admin
// role. Revoking a role that is not held is a no-op.
func (g *Gate) RevokeRole(ctx context.Context, tx *store.Tx, stamp Stamp, sender ir.Principal, role ir.Role, account ir.Principal) error {
	if err := g.checkAdmin(ctx, tx, sender, role); err != nil {
		return err
	}
	return g.revoke(ctx, tx, stamp, sender, role, account)
}

// RenounceRole lets account give up role. sender must equal account.
func (g *Gate) RenounceRole(ctx context.Context, tx *store.Tx, stamp Stamp, sender ir.Principal, role ir.Role, account ir.Principal) error {
	if sender != account {
		return fmt.Errorf("%w: %s for %s", ErrBadConfirmation, sender, account)
	}
	return g.revoke(ctx, tx, stamp, sender, role, account)
}

// SetRoleAdmin changes the admin role of role without an authorization
// check. Callers use it during setup only.
func (g *Gate) SetRoleAdmin(ctx context.Context, tx *store.Tx, stamp Stamp, role, admin ir.Role) error {
	previous, err := g.GetRoleAdmin(ctx, tx, role)
	if err != nil {
		return err
	}
	if err := tx.SetRoleAdmin(ctx, role, admin); err != nil {
		return err
	}
	_, err = tx.AppendEvent(ctx, store.Event{
		Kind:          store.EventRoleAdminChanged,
		CallIndex:     store.NoCallIndex,
		Timestamp:     stamp.Timestamp,
		CorrelationID: stamp.CorrelationID,
		Payload: ir.IRObject{
			"role":           ir.IRString(role),
			"previous_admin": ir.IRString(previous),
			"new_admin":      ir.IRString(admin),
		},
	})
	return err
}

// Grant adds account to role without an authorization check. It is used
// by initialization and by GrantRole after the admin check passed.
func (g *Gate) Grant(ctx context.Context, tx *store.Tx, stamp Stamp, sender ir.Principal, role ir.Role, account ir.Principal) error {
	added, err := tx.AddMember(ctx, role, account)
	if err != nil || !added {
		return err
	}
	g.logger.Debug("role granted", "role", role, "account", account, "sender", sender)
	return g.emit(ctx, tx, stamp, store.EventRoleGranted, sender, role, account)
}

func (g *Gate) revoke(ctx context.Context, tx *store.Tx, stamp Stamp, sender ir.Principal, role ir.Role, account ir.Principal) error {
	removed, err := tx.RemoveMember(ctx, role, account)
	if err != nil || !removed {
		return err
	}
	g.logger.Debug("role revoked", "role", role, "account", account, "sender", sender)
	return g.emit(ctx, tx, stamp, store.EventRoleRevoked, sender, role, account)
}

func (g *Gate) checkAdmin(ctx context.Context, tx *store.Tx, sender ir.Principal, role ir.Role) error {
	admin, err := g.GetRoleAdmin(ctx, tx, role)
	if err != nil {
		return err
	}
	ok, err := tx.HasMember(ctx, admin, sender)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks %s", ErrMissingRole, sender, admin)
	}
	return nil
}

func (g *Gate) emit(ctx context.Context, tx *store.Tx, stamp Stamp, kind store.EventKind, sender ir.Principal, role ir.Role, account ir.Principal) error {
	_, err := tx.AppendEvent(ctx, store.Event{
		Kind:          kind,
		CallIndex:     store.NoCallIndex,
		Timestamp:     stamp.Timestamp,
		CorrelationID: stamp.CorrelationID,
		Payload: ir.IRObject{
			"role":    ir.IRString(role),
			"account": ir.IRString(account),
			"sender":  ir.IRString(sender),
		},
	})
	return err
}
