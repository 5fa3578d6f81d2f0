package cli

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// DefaultDatabase is the ledger file used when --db is not given.
const DefaultDatabase = "timelock.db"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	// As is the principal commands act as.
	As string
	// Now pins the clock to a fixed unix time. 0 uses the system clock.
	Now uint64
	// MetricsFile receives Prometheus metrics in text format when a command
	// finishes, for a node_exporter textfile collector.
	MetricsFile string

	logger   *slog.Logger
	registry *prometheus.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the timelock CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "timelock",
		Short: "timelock - time-delayed execution controller",
		Long: `A time-delayed execution controller.

Proposers schedule operations that become executable only after a minimum
delay. Cancellers may abort pending operations. Executors run Ready
operations. The minimum delay itself is changed only through a scheduled
operation that calls back into the timelock.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite ledger")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "principal to act as")
	cmd.PersistentFlags().Uint64Var(&opts.Now, "now", 0, "fixed unix time for the clock (0 = system clock)")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewExecuteCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewDelayCommand(opts))
	cmd.AddCommand(NewRolesCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Logger returns the logger configured by the root command.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}
