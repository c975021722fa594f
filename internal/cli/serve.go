package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP trigger API and the optional scheduler",
		Long: `Run the HTTP trigger API until interrupted.

When scheduler.enabled is set the pipeline also runs on its own every
scheduler.interval, starting immediately.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, logger, err := opts.openApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
