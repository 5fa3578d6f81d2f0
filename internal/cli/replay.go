package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ReplayResult holds the outcome of rebuilding state from the event log.
type ReplayResult struct {
	Events     int      `json:"events"`
	Operations int      `json:"operations"`
	OK         bool     `json:"ok"`
	Mismatches []string `json:"mismatches"`
}

func (r ReplayResult) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Replayed %d event(s), %d ledger entries\n", r.Events, r.Operations)
	if r.OK {
		buf.WriteString("✓ Event log matches live state")
		return buf.String()
	}
	for _, m := range r.Mismatches {
		fmt.Fprintf(&buf, "  %s\n", m)
	}
	buf.WriteString("✗ Replay mismatch")
	return buf.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild state from the event log and compare with the ledger",
		Long: `Replay the event log and verify it reproduces the live ledger, min_delay
and role membership.

Exit codes:
  0 - Replay matches live state
  1 - Mismatch detected
  2 - Command error (database not readable, etc.)

Examples:
  timelock replay --db ./timelock.db
  timelock replay --db ./timelock.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(rootOpts, cmd)

			tl, st, err := openTimelock(ctx, rootOpts)
			if err != nil {
				return f.Fail(err)
			}
			defer closeStore(rootOpts, st)

			report, err := tl.VerifyReplay(ctx)
			if err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "replay failed", err))
			}
			result := ReplayResult{
				Events:     report.Events,
				Operations: report.Operations,
				OK:         report.OK(),
				Mismatches: report.Mismatches,
			}
			if err := f.Success(result); err != nil {
				return err
			}
			if !result.OK {
				return NewExitError(ExitFailure, "replay mismatch")
			}
			return nil
		},
	}
	return cmd
}
