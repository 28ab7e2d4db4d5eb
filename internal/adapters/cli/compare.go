package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/rx-crosscheck/internal/bootstrap"
	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
	"github.com/kirillkom/rx-crosscheck/internal/core/review"
	"github.com/kirillkom/rx-crosscheck/internal/core/usecase"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

type compareOptions struct {
	primaryPath   string
	secondaryPath string
	requestPath   string
	offline       bool
}

func newCompareCmd(root *rootOptions) *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Reconcile two saved analyses",
		Long: "Reconcile two saved analyses. Analysis files may be raw model output; " +
			"they go through the same normalization as live reviewer answers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.primaryPath == "" || opts.secondaryPath == "" {
				return domain.WrapError(domain.ErrInvalidInput, "compare", errors.New("--primary and --secondary are required"))
			}
			normalizer := review.NewNormalizer(time.Now)
			primary, err := loadAnalysis(normalizer, opts.primaryPath, "primary", cmd.InOrStdin())
			if err != nil {
				return err
			}
			secondary, err := loadAnalysis(normalizer, opts.secondaryPath, "secondary", cmd.InOrStdin())
			if err != nil {
				return err
			}

			if opts.offline {
				return printJSON(cmd.OutOrStdout(), usecase.FallbackComparison(primary, secondary))
			}

			var prescription domain.Prescription
			if opts.requestPath != "" {
				req, err := readEvaluationRequest(opts.requestPath, cmd.InOrStdin())
				if err != nil {
					return err
				}
				prescription = req.Prescription
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateComparator(); err != nil {
				return err
			}
			agent, err := comparisonAgent(cfg)
			if err != nil {
				return err
			}
			reconciler := usecase.NewReconciler(agent, review.PromptOptions{Language: cfg.ResponseLanguage}, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ProviderTimeout()+10*time.Second)
			defer cancel()
			return printJSON(cmd.OutOrStdout(), reconciler.Compare(ctx, primary, secondary, prescription))
		},
	}

	cmd.Flags().StringVar(&opts.primaryPath, "primary", "", "Primary analysis JSON file")
	cmd.Flags().StringVar(&opts.secondaryPath, "secondary", "", "Secondary analysis JSON file")
	cmd.Flags().StringVar(&opts.requestPath, "request", "", "Evaluation request JSON file for prescription context")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip the comparison agent and use the local fallback")
	return cmd
}

func loadAnalysis(normalizer *review.Normalizer, path, reviewer string, stdin io.Reader) (domain.Analysis, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return domain.Analysis{}, err
	}
	analysis, err := normalizer.Normalize(string(data))
	if err != nil {
		return domain.Analysis{}, err
	}
	analysis.Reviewer = reviewer
	return analysis, nil
}

// comparisonAgent returns nil when the comparator is disabled, which makes
// the reconciler fall back.
func comparisonAgent(cfg config.Config) (ports.Completer, error) {
	if cfg.ComparatorProvider == config.ProviderNone {
		return nil, nil
	}
	return bootstrap.NewCompleter(cfg.ComparatorProvider, cfg, bootstrap.NewExecutor(cfg, resilience.Hooks{}), true)
}
