package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Operation string
	Kinds     []string
	After     int64
	Limit     int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Long: `Print the append-only event log in seq order.

Payloads are canonical JSON, so the same history always prints the same
bytes.

Examples:
  timelock events
  timelock events --op 5f0c... --kind CallScheduled --kind CallExecuted
  timelock events --after 120 --limit 50 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Operation, "op", "", "only events of this operation id")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only events of these kinds (repeatable)")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	filter := store.EventFilter{AfterSeq: opts.After, Limit: opts.Limit}
	if opts.Operation != "" {
		id, err := parseOperationID(opts.Operation)
		if err != nil {
			return f.Fail(err)
		}
		filter.OperationID = id
	}
	for _, k := range opts.Kinds {
		filter.Kinds = append(filter.Kinds, store.EventKind(k))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer closeStore(opts.RootOptions, st)

	events, err := st.ReadEvents(ctx, filter)
	if err != nil {
		return f.Fail(err)
	}
	return f.Success(eventList(events))
}

type eventList []store.Event

func (l eventList) String() string {
	if len(l) == 0 {
		return "no events"
	}
	var buf strings.Builder
	for i, ev := range l {
		if i > 0 {
			buf.WriteByte('\n')
		}
		payload, err := ir.MarshalCanonical(ev.Payload)
		if err != nil {
			payload = []byte(fmt.Sprintf("<%v>", err))
		}
		fmt.Fprintf(&buf, "%d t=%d %s", ev.Seq, ev.Timestamp, ev.Kind)
		if !ev.OperationID.IsZero() {
			fmt.Fprintf(&buf, " op=%s", ev.OperationID)
		}
		if ev.CallIndex != store.NoCallIndex {
			fmt.Fprintf(&buf, " call=%d", ev.CallIndex)
		}
		fmt.Fprintf(&buf, " %s", payload)
	}
	return buf.String()
}
