package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/rx-crosscheck/internal/bootstrap"
	"github.com/kirillkom/rx-crosscheck/internal/config"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and report the configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "rxcheck doctor")
			fmt.Fprintf(out, "- primary reviewer: %s (%s)\n", cfg.PrimaryReviewer, bootstrap.ProviderModel(cfg.PrimaryReviewer, cfg, false))
			fmt.Fprintf(out, "- secondary reviewer: %s (%s)\n", cfg.SecondaryReviewer, bootstrap.ProviderModel(cfg.SecondaryReviewer, cfg, false))
			if cfg.ComparatorProvider == config.ProviderNone {
				fmt.Fprintln(out, "- comparison agent: disabled (fallback only)")
			} else {
				fmt.Fprintf(out, "- comparison agent: %s (%s)\n", cfg.ComparatorProvider, bootstrap.ProviderModel(cfg.ComparatorProvider, cfg, true))
			}
			fmt.Fprintf(out, "- response language: %s\n", cfg.ResponseLanguage)
			fmt.Fprintf(out, "- archive: %s\n", cfg.ArchiveBackend)

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "- config: failed\n%v\n", err)
				return err
			}
			fmt.Fprintln(out, "doctor checks passed")
			return nil
		},
	}
}
