package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skyyMo/skynet-ai/internal/app"
	"github.com/skyyMo/skynet-ai/internal/config"
	"github.com/skyyMo/skynet-ai/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// LogOutput receives structured logs. Nil means the command's error stream.
	LogOutput io.Writer
}

// NewRootCommand creates the root command for the skynet CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "skynet",
		Short: "Skynet turns meeting transcripts into user stories",
		Long: "Skynet reads recent meeting transcripts, extracts user stories with a language model, " +
			"announces them to Slack and deploys approved stories to Jira.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML or TOML config file (default $SKYNET_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override the configured log format (text|logfmt|json)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewProcessCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))

	return cmd
}

// loadConfig reads configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
	return cfg, nil
}

func (o *RootOptions) logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	w := o.LogOutput
	if w == nil {
		w = cmd.ErrOrStderr()
	}
	return logging.NewWithWriter(w, cfg.Logging.Level, cfg.Logging.Format)
}

// openApp builds the application graph. requireCredentials rejects a config
// that could not complete a pipeline pass.
func (o *RootOptions) openApp(ctx context.Context, cmd *cobra.Command, requireCredentials bool) (*app.Application, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		if requireCredentials {
			return nil, nil, err
		}
		logger.Warn("configuration incomplete", "error", err)
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
