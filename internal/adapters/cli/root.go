package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/observability/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "rxcheck",
		Short:         "Cross-check prescriptions with two independent AI reviewers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "rxcheck", opts.logLevel))
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config overlay (defaults to $CONFIG_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(newEvaluateCmd(opts))
	root.AddCommand(newCompareCmd(opts))
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newMCPCmd(opts))

	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFrom(o.configPath)
	}
	return config.Load()
}
