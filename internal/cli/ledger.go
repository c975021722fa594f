package cli

import (
	"github.com/spf13/cobra"
)

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledger",
		Short:         "Print the processing ledger",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := rootOpts.openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer application.Close()

			return writeJSON(cmd.OutOrStdout(), application.Ledger.Snapshot())
		},
	}
	return cmd
}
