package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state [operation-id]",
		Short: "Show the state of one operation, or of every ledger entry",
		Long: `Show operation state. States are derived from the stored timestamp and the
current clock: Unset, Waiting, Ready or Done.

Examples:
  timelock state 5f0c...
  timelock state --now 1700003600 --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			if len(args) == 1 {
				id, err := parseOperationID(args[0])
				if err != nil {
					return f.Fail(err)
				}
				res, err := describeOperation(ctx, tl, id)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(res)
			}

			ops, err := tl.Operations(ctx)
			if err != nil {
				return f.Fail(err)
			}
			list := make(operationList, len(ops))
			for i, op := range ops {
				list[i] = operationResult{ID: op.ID.String(), State: op.State.String(), Timestamp: op.Timestamp}
			}
			return f.Success(list)
		},
	}
	return cmd
}

type operationList []operationResult

func (l operationList) String() string {
	if len(l) == 0 {
		return "no operations"
	}
	lines := make([]string, len(l))
	for i, op := range l {
		lines[i] = op.String()
	}
	return strings.Join(lines, "\n")
}

// NewDelayCommand creates the delay command.
func NewDelayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delay",
		Short: "Show the current min_delay",
		Long: `Show the current min_delay in seconds.

min_delay changes only by executing an operation that calls the timelock
itself with selector update_delay:

  timelock schedule --as alice --delay 3600 \
    --calls '{"target":"timelock","selector":"update_delay","args":[7200]}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			d, err := tl.GetMinDelay(ctx)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(delayResult{MinDelay: d})
		},
	}
	return cmd
}

type delayResult struct {
	MinDelay uint64 `json:"min_delay"`
}

func (r delayResult) String() string {
	return fmt.Sprintf("%d", r.MinDelay)
}
