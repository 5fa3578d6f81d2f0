package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/config"
	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Config    string
	MinDelay  uint64
	Proposers []string
	Executors []string
	Admin     string
	Self      string
}

type initResult struct {
	Self      string   `json:"self"`
	MinDelay  uint64   `json:"min_delay"`
	Proposers []string `json:"proposers"`
	Executors []string `json:"executors"`
	Admin     string   `json:"admin,omitempty"`
}

func (r initResult) String() string {
	s := fmt.Sprintf("initialized %s: min_delay=%d proposers=[%s] executors=[%s]",
		r.Self, r.MinDelay, strings.Join(r.Proposers, ","), strings.Join(r.Executors, ","))
	if r.Admin != "" {
		s += " admin=" + r.Admin
	}
	return s
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new timelock ledger",
		Long: `Initialize a timelock ledger once: set min_delay and grant the initial roles.

The deployment is read from a CUE file (--config) or from flags. An executor
of "*" opens execution to every caller.

Exit codes:
  0 - Ledger initialized
  1 - Ledger was already initialized
  2 - Command error (invalid config, unreadable database, etc.)

Examples:
  timelock init --config deployment.cue
  timelock init --min-delay 3600 --proposer alice --executor '*' --admin ops`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE deployment file")
	cmd.Flags().Uint64Var(&opts.MinDelay, "min-delay", 0, "minimum delay in seconds")
	cmd.Flags().StringSliceVar(&opts.Proposers, "proposer", nil, "proposer principal (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Executors, "executor", nil, "executor principal (repeatable, * for open)")
	cmd.Flags().StringVar(&opts.Admin, "admin", "", "optional extra DEFAULT_ADMIN holder")
	cmd.Flags().StringVar(&opts.Self, "self", string(engine.DefaultSelf), "principal the timelock acts as")

	return cmd
}

func (o *InitOptions) deployment(cmd *cobra.Command) (*config.Deployment, error) {
	if o.Config == "" {
		return &config.Deployment{
			Self:      o.Self,
			MinDelay:  o.MinDelay,
			Proposers: o.Proposers,
			Executors: o.Executors,
			Admin:     o.Admin,
		}, nil
	}
	for _, name := range []string{"min-delay", "proposer", "executor", "admin", "self"} {
		if cmd.Flags().Changed(name) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s cannot be combined with --config", name))
		}
	}
	dep, err := config.LoadFile(o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid deployment config", err)
	}
	return dep, nil
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	dep, err := opts.deployment(cmd)
	if err != nil {
		return f.Fail(err)
	}
	self := dep.SelfPrincipal()
	if self.IsOpen() {
		return f.Fail(NewExitError(ExitCommandError, fmt.Sprintf("%q cannot be the timelock principal", ir.OpenPrincipal)))
	}

	tl, st, err := openTimelock(ctx, opts.RootOptions, engine.WithSelf(self))
	if err != nil {
		return f.Fail(err)
	}
	defer closeStore(opts.RootOptions, st)

	if err := tl.Initialize(ctx, dep.InitParams()); err != nil {
		return f.Fail(err)
	}

	return f.Success(initResult{
		Self:      string(self),
		MinDelay:  dep.MinDelay,
		Proposers: nonNil(dep.Proposers),
		Executors: nonNil(dep.Executors),
		Admin:     dep.Admin,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
