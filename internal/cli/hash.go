package cli

import (
	"github.com/spf13/cobra"
)

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute an operation id without touching the ledger",
		Long: `Compute the content-addressed id of an operation.

The id depends only on the calls, predecessor and salt, so it can be
predicted before scheduling.

Examples:
  timelock hash --calls '{"target":"state","selector":"set","args":["k","v"]}' --salt-label release-1
  timelock hash --calls-file upgrade.json --predecessor 5f0c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			spec, err := flags.parse()
			if err != nil {
				return f.Fail(err)
			}
			id, err := spec.id()
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(hashResult{ID: id.String(), Batch: spec.Batch, Calls: len(spec.Calls)})
		},
	}
	flags.bind(cmd, false)
	return cmd
}

type hashResult struct {
	ID    string `json:"id"`
	Batch bool   `json:"batch"`
	Calls int    `json:"calls"`
}

func (r hashResult) String() string {
	return r.ID
}
