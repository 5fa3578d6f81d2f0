package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags opFlags
		delay uint64
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule an operation (requires PROPOSER)",
		Long: `Schedule an operation to become Ready after --delay seconds.

The delay must be at least the current min_delay.

Exit codes:
  0 - Operation scheduled
  1 - Rejected (UNAUTHORIZED, ALREADY_SCHEDULED, INSUFFICIENT_DELAY, ...)
  2 - Command error

Examples:
  timelock schedule --as alice --delay 3600 \
    --calls '{"target":"state","selector":"set","args":["greeting","hello"]}' --salt-label s1
  timelock schedule --as alice --delay 86400 --calls-file batch.json --random-salt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(rootOpts, cmd, &flags, func(ctx context.Context, tl *engine.Timelock, caller ir.Principal, spec opSpec) (ir.OperationID, error) {
				if spec.Batch {
					return tl.ScheduleBatch(ctx, caller, spec.Calls, spec.Predecessor, spec.Salt, delay)
				}
				return tl.Schedule(ctx, caller, spec.Calls[0], spec.Predecessor, spec.Salt, delay)
			})
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().Uint64Var(&delay, "delay", 0, "delay in seconds (required)")
	_ = cmd.MarkFlagRequired("delay")
	return cmd
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a Ready operation (requires EXECUTOR unless open)",
		Long: `Execute a Ready operation. The calls, predecessor and salt must match the
scheduled operation exactly. All calls run in one transaction; if any fails
the whole execution rolls back and the operation stays Ready.

Exit codes:
  0 - Operation executed
  1 - Rejected (NOT_READY, PREDECESSOR_NOT_DONE, CALL_FAILED, ...)
  2 - Command error

Example:
  timelock execute --as bob \
    --calls '{"target":"state","selector":"set","args":["greeting","hello"]}' --salt-label s1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(rootOpts, cmd, &flags, func(ctx context.Context, tl *engine.Timelock, caller ir.Principal, spec opSpec) (ir.OperationID, error) {
				if spec.Batch {
					return tl.ExecuteBatch(ctx, caller, spec.Calls, spec.Predecessor, spec.Salt)
				}
				return tl.Execute(ctx, caller, spec.Calls[0], spec.Predecessor, spec.Salt)
			})
		},
	}
	flags.bind(cmd, false)
	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <operation-id>",
		Short: "Cancel a pending operation (requires CANCELLER)",
		Long: `Cancel a Waiting or Ready operation, returning it to Unset.

Example:
  timelock cancel --as alice 5f0c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			caller, err := rootOpts.caller()
			if err != nil {
				return f.Fail(err)
			}
			id, err := parseOperationID(args[0])
			if err != nil {
				return f.Fail(err)
			}

			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			if err := tl.Cancel(ctx, caller, id); err != nil {
				return f.Fail(err)
			}
			return f.Success(operationResult{ID: id.String(), State: ir.StateUnset.String()})
		},
	}
	return cmd
}

type operationFunc func(ctx context.Context, tl *engine.Timelock, caller ir.Principal, spec opSpec) (ir.OperationID, error)

// runOperation parses the operation flags, runs fn as the --as principal
// and reports the resulting state.
func runOperation(opts *RootOptions, cmd *cobra.Command, flags *opFlags, fn operationFunc) error {
	ctx := context.Background()
	f := newFormatter(opts, cmd)

	caller, err := opts.caller()
	if err != nil {
		return f.Fail(err)
	}
	spec, err := flags.parse()
	if err != nil {
		return f.Fail(err)
	}

	tl, st, err := openTimelock(ctx, opts)
	if err != nil {
		return f.Fail(err)
	}
	defer closeStore(opts, st)

	id, err := fn(ctx, tl, caller, spec)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("operation %s", id)

	res, err := describeOperation(ctx, tl, id)
	if err != nil {
		return f.Fail(err)
	}
	if flags.RandomSalt {
		res.Salt = spec.Salt.String()
	}
	return f.Success(res)
}

func describeOperation(ctx context.Context, tl *engine.Timelock, id ir.OperationID) (operationResult, error) {
	ts, err := tl.GetTimestamp(ctx, id)
	if err != nil {
		return operationResult{}, err
	}
	state, err := tl.GetOperationState(ctx, id)
	if err != nil {
		return operationResult{}, err
	}
	return operationResult{ID: id.String(), State: state.String(), Timestamp: ts}, nil
}
