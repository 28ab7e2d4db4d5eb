package cli

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/rx-crosscheck/internal/adapters/mcp"
	"github.com/kirillkom/rx-crosscheck/internal/bootstrap"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the evaluate_prescription tool over MCP on stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
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
			return mcpadapter.New(engine.Orchestrator).ServeStdio(Version)
		},
	}
}
