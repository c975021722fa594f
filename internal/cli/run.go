package cli

import (
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command: one on-demand pipeline pass.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run",
		Short:         "Run one pipeline pass over recent transcripts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := rootOpts.openApp(cmd.Context(), cmd, true)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	return cmd
}

// NewProcessCommand creates the process command for a single transcript.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "process <document-id>",
		Short:         "Process one transcript if it is still eligible",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := rootOpts.openApp(cmd.Context(), cmd, true)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Pipeline.ProcessDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	return cmd
}

// NewPreviewCommand creates the preview command. It never calls the model
// and never touches the ledger.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "preview",
		Short:         "Show which recent transcripts a pass would analyze",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := rootOpts.openApp(cmd.Context(), cmd, false)
			if err != nil {
				return err
			}
			defer application.Close()

			previews, err := application.Pipeline.Preview(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), previews)
		},
	}
	return cmd
}
