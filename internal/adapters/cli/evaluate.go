package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/rx-crosscheck/internal/bootstrap"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run both reviewers and the reconciler on one request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readEvaluationRequest(requestPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := req.Validate(time.Now().UTC()); err != nil {
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			engine, err := bootstrap.NewEngine(cfg, bootstrap.NewExecutor(cfg, resilience.Hooks{}), nil)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*cfg.ProviderTimeout()+30*time.Second)
			defer cancel()
			result, err := engine.Orchestrator.Run(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&requestPath, "request", "-", `Evaluation request JSON file ("-" for stdin)`)
	return cmd
}
