package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

// NewRolesCommand creates the roles command group.
func NewRolesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect and manage roles",
		Long: `Inspect and manage the DEFAULT_ADMIN, PROPOSER, CANCELLER and EXECUTOR roles.

Granting and revoking require the role's admin role (DEFAULT_ADMIN).
Renouncing is only possible for your own account.

Examples:
  timelock roles grant --as ops proposer carol
  timelock roles members executor
  timelock roles has proposer carol`,
	}

	cmd.AddCommand(roleChangeCommand(rootOpts, "grant", "Grant a role to an account",
		func(ctx context.Context, tl *engine.Timelock, sender ir.Principal, role ir.Role, acct ir.Principal) error {
			return tl.GrantRole(ctx, sender, role, acct)
		}))
	cmd.AddCommand(roleChangeCommand(rootOpts, "revoke", "Revoke a role from an account",
		func(ctx context.Context, tl *engine.Timelock, sender ir.Principal, role ir.Role, acct ir.Principal) error {
			return tl.RevokeRole(ctx, sender, role, acct)
		}))
	cmd.AddCommand(roleChangeCommand(rootOpts, "renounce", "Give up a role held by --as",
		func(ctx context.Context, tl *engine.Timelock, sender ir.Principal, role ir.Role, acct ir.Principal) error {
			return tl.RenounceRole(ctx, sender, role, acct)
		}))
	cmd.AddCommand(newHasRoleCommand(rootOpts))
	cmd.AddCommand(newMembersCommand(rootOpts))

	return cmd
}

type roleChangeFunc func(ctx context.Context, tl *engine.Timelock, sender ir.Principal, role ir.Role, acct ir.Principal) error

func roleChangeCommand(rootOpts *RootOptions, use, short string, fn roleChangeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <role> <account>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			sender, err := rootOpts.caller()
			if err != nil {
				return f.Fail(err)
			}
			role, err := parseRole(args[0])
			if err != nil {
				return f.Fail(err)
			}
			acct := ir.Principal(args[1])

			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			if err := fn(ctx, tl, sender, role, acct); err != nil {
				return f.Fail(err)
			}
			holds, err := tl.HasRole(ctx, role, acct)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(roleResult{Role: string(role), Account: string(acct), Holds: holds})
		},
	}
}

func newHasRoleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "has <role> <account>",
		Short: "Report whether an account holds a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			role, err := parseRole(args[0])
			if err != nil {
				return f.Fail(err)
			}
			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			holds, err := tl.HasRole(ctx, role, ir.Principal(args[1]))
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(roleResult{Role: string(role), Account: args[1], Holds: holds})
		},
	}
}

func newMembersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "members <role>",
		Short: "List the holders of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			role, err := parseRole(args[0])
			if err != nil {
				return f.Fail(err)
			}
			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			members, err := tl.RoleMembers(ctx, role)
			if err != nil {
				return f.Fail(err)
			}
			admin, err := tl.GetRoleAdmin(ctx, role)
			if err != nil {
				return f.Fail(err)
			}
			res := membersResult{Role: string(role), Admin: string(admin), Members: make([]string, len(members))}
			for i, m := range members {
				res.Members[i] = string(m)
			}
			return f.Success(res)
		},
	}
}

func parseRole(s string) (ir.Role, error) {
	role, err := ir.ParseRole(s)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid role", err)
	}
	return role, nil
}

type roleResult struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	Holds   bool   `json:"holds"`
}

func (r roleResult) String() string {
	return fmt.Sprintf("%s %s %t", r.Role, r.Account, r.Holds)
}

type membersResult struct {
	Role    string   `json:"role"`
	Admin   string   `json:"admin"`
	Members []string `json:"members"`
}

func (r membersResult) String() string {
	if len(r.Members) == 0 {
		return fmt.Sprintf("%s (admin %s): no members", r.Role, r.Admin)
	}
	return fmt.Sprintf("%s (admin %s): %s", r.Role, r.Admin, strings.Join(r.Members, ", "))
}
