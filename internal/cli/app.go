package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/metrics"
	"github.com/roach88/timelock/internal/store"
)

// clock returns the fixed --now clock, or the system clock.
func (o *RootOptions) clock() engine.Clock {
	if o.Now > 0 {
		return engine.FixedClock(o.Now)
	}
	return engine.SystemClock{}
}

// caller returns the --as principal, required by state-changing commands.
func (o *RootOptions) caller() (ir.Principal, error) {
	if o.As == "" {
		return "", NewExitError(ExitCommandError, "--as is required for this command")
	}
	return ir.Principal(o.As), nil
}

// openTimelock opens the ledger at --db and builds a timelock acting as the
// principal recorded at initialization. extra options are applied last.
func openTimelock(ctx context.Context, opts *RootOptions, extra ...engine.Option) (*engine.Timelock, *store.Store, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var self ir.Principal
	err = st.View(ctx, func(tx *store.Tx) error {
		_, s, err := tx.Initialized(ctx)
		self = s
		return err
	})
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	engineOpts := []engine.Option{
		engine.WithClock(opts.clock()),
		engine.WithLogger(opts.Logger()),
	}
	if self != "" {
		engineOpts = append(engineOpts, engine.WithSelf(self))
	}
	var m *metrics.Metrics
	if opts.MetricsFile != "" {
		opts.registry = prometheus.NewRegistry()
		m = metrics.New(opts.registry)
		engineOpts = append(engineOpts, engine.WithMetrics(m))
	}
	engineOpts = append(engineOpts, extra...)
	tl := engine.New(st, engineOpts...)

	if m != nil && self != "" {
		d, err := tl.GetMinDelay(ctx)
		if err != nil {
			st.Close()
			return nil, nil, WrapExitError(ExitCommandError, "failed to read min delay", err)
		}
		m.SetMinDelay(d)
	}
	return tl, st, nil
}

// closeStore closes st and flushes --metrics-file, logging rather than
// masking the command's result.
func closeStore(opts *RootOptions, st *store.Store) {
	if err := st.Close(); err != nil {
		opts.Logger().Error("error closing database", "error", err)
	}
	if opts.registry == nil {
		return
	}
	if err := prometheus.WriteToTextfile(opts.MetricsFile, opts.registry); err != nil {
		opts.Logger().Error("error writing metrics", "path", opts.MetricsFile, "error", err)
	}
}

func parseOperationID(s string) (ir.OperationID, error) {
	id, err := ir.ParseOperationID(s)
	if err != nil {
		return ir.OperationID{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid operation id %q", s), err)
	}
	if id.IsZero() {
		return ir.OperationID{}, NewExitError(ExitCommandError, "operation id is required")
	}
	return id, nil
}
