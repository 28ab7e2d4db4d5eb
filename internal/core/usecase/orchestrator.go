package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
)

// Orchestrator runs both reviewers in parallel and reconciles their verdicts.
type Orchestrator struct {
	primary    ports.Reviewer
	secondary  ports.Reviewer
	reconciler *Reconciler
	observer   ports.EvaluationObserver
}

func NewOrchestrator(primary, secondary ports.Reviewer, reconciler *Reconciler, observer ports.EvaluationObserver) *Orchestrator {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Orchestrator{
		primary:    primary,
		secondary:  secondary,
		reconciler: reconciler,
		observer:   observer,
	}
}

// Run fails as a whole when either reviewer fails; a single-reviewer result is
// never returned. Reconciliation problems are absorbed by the Reconciler.
func (o *Orchestrator) Run(ctx context.Context, req domain.EvaluationRequest) (domain.EvaluationResult, error) {
	started := time.Now()
	o.observer.EvaluationStarted()

	result, err := o.run(ctx, req)
	o.observer.EvaluationFinished(time.Since(started), err)
	if err != nil {
		return domain.EvaluationResult{}, err
	}

	slog.Info("evaluation_completed",
		"primary_status", result.Primary.Status,
		"secondary_status", result.Secondary.Status,
		"score_difference", result.Comparison.ScoreDifference,
		"agreement", result.Comparison.Agreement,
		"needs_human_review", result.Comparison.NeedsHumanReview,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req domain.EvaluationRequest) (domain.EvaluationResult, error) {
	var primary, secondary domain.Analysis

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analysis, err := o.review(gctx, o.primary, req)
		if err != nil {
			return err
		}
		primary = analysis
		return nil
	})
	g.Go(func() error {
		analysis, err := o.review(gctx, o.secondary, req)
		if err != nil {
			return err
		}
		secondary = analysis
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.EvaluationResult{}, err
	}

	comparison := o.reconciler.Compare(ctx, primary, secondary, req.Prescription)
	return domain.EvaluationResult{
		Primary:    primary,
		Secondary:  secondary,
		Comparison: comparison,
	}, nil
}

func (o *Orchestrator) review(ctx context.Context, reviewer ports.Reviewer, req domain.EvaluationRequest) (domain.Analysis, error) {
	started := time.Now()
	analysis, err := reviewer.Evaluate(ctx, req.Prescription, req.Patient)
	elapsed := time.Since(started)
	o.observer.ReviewerFinished(reviewer.Name(), elapsed, err)

	if err != nil {
		slog.Warn("reviewer_failed", "reviewer", reviewer.Name(), "duration_ms", elapsed.Milliseconds(), "error", err)
		return domain.Analysis{}, fmt.Errorf("run reviewer %s: %w", reviewer.Name(), err)
	}
	slog.Debug("reviewer_completed",
		"reviewer", reviewer.Name(),
		"status", analysis.Status,
		"score", analysis.OverallScore,
		"duration_ms", elapsed.Milliseconds(),
	)
	return analysis, nil
}

type noopObserver struct{}

func (noopObserver) EvaluationStarted() {}
func (noopObserver) EvaluationFinished(time.Duration, error) {}
func (noopObserver) ReviewerFinished(string, time.Duration, error) {}
func (noopObserver) ComparisonFinished(domain.ComparisonResult, bool) {}
