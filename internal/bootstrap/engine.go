package bootstrap

import (
	"fmt"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
	"github.com/kirillkom/rx-crosscheck/internal/core/review"
	"github.com/kirillkom/rx-crosscheck/internal/core/usecase"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

// Engine is the evaluation core without persistence: both reviewers, the
// reconciler and the orchestrator joining them.
type Engine struct {
	Primary      ports.Reviewer
	Secondary    ports.Reviewer
	Reconciler   *usecase.Reconciler
	Orchestrator *usecase.Orchestrator
}

// NewEngine wires reviewers and the comparison agent from config. With
// COMPARATOR_PROVIDER=none every comparison uses the fallback.
func NewEngine(cfg config.Config, executor *resilience.Executor, observer ports.EvaluationObserver) (*Engine, error) {
	prompts := review.PromptOptions{Language: cfg.ResponseLanguage, Now: time.Now}
	normalizer := review.NewNormalizer(time.Now)

	primary, err := newReviewer(cfg.PrimaryReviewer, cfg, executor, normalizer, prompts)
	if err != nil {
		return nil, fmt.Errorf("primary reviewer: %w", err)
	}
	secondary, err := newReviewer(cfg.SecondaryReviewer, cfg, executor, normalizer, prompts)
	if err != nil {
		return nil, fmt.Errorf("secondary reviewer: %w", err)
	}

	var agent ports.Completer
	if cfg.ComparatorProvider != config.ProviderNone {
		agent, err = NewCompleter(cfg.ComparatorProvider, cfg, executor, true)
		if err != nil {
			return nil, fmt.Errorf("comparison agent: %w", err)
		}
	}

	reconciler := usecase.NewReconciler(agent, prompts, observer)
	return &Engine{
		Primary:      primary,
		Secondary:    secondary,
		Reconciler:   reconciler,
		Orchestrator: usecase.NewOrchestrator(primary, secondary, reconciler, observer),
	}, nil
}

func newReviewer(provider string, cfg config.Config, executor *resilience.Executor, normalizer *review.Normalizer, prompts review.PromptOptions) (*review.Client, error) {
	completer, err := NewCompleter(provider, cfg, executor, false)
	if err != nil {
		return nil, err
	}
	return review.NewClient(provider, completer, normalizer, prompts), nil
}
