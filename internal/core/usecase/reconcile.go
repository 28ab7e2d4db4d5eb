package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
	"github.com/kirillkom/rx-crosscheck/internal/core/review"
)

const (
	// Fallback agreement drops from high to medium above this score gap.
	agreementScoreGap = 10
	// Default summary suggests a closer look above this score gap. It never
	// sets needsHumanReview on its own.
	reviewHintScoreGap = 20

	defaultFinalRecommendation  = "Review both analyses before dispensing."
	fallbackDifferenceNote      = "Automatic comparison unavailable."
	fallbackFinalRecommendation = "Automatic comparison failed. Manual review of both analyses is recommended."
)

// Reconciler merges two analyses into one ComparisonResult. The deterministic
// facts are always computed locally; the comparison agent only enriches them.
type Reconciler struct {
	agent    ports.Completer
	prompts  review.PromptOptions
	observer ports.EvaluationObserver
}

// NewReconciler builds a Reconciler. A nil agent makes every comparison use
// the fallback path.
func NewReconciler(agent ports.Completer, prompts review.PromptOptions, observer ports.EvaluationObserver) *Reconciler {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Reconciler{
		agent:    agent,
		prompts:  prompts,
		observer: observer,
	}
}

// Compare never fails: any problem with the comparison agent yields the
// fallback comparison.
func (r *Reconciler) Compare(ctx context.Context, primary, secondary domain.Analysis, prescription domain.Prescription) domain.ComparisonResult {
	verdict, err := r.consult(ctx, primary, secondary, prescription)
	if err != nil {
		slog.Warn("reconciliation_fallback",
			"primary", primary.Reviewer,
			"secondary", secondary.Reviewer,
			"error", err,
		)
		result := FallbackComparison(primary, secondary)
		r.observer.ComparisonFinished(result, true)
		return result
	}

	result := mergeVerdict(primary, secondary, verdict)
	r.observer.ComparisonFinished(result, false)
	return result
}

func (r *Reconciler) consult(ctx context.Context, primary, secondary domain.Analysis, prescription domain.Prescription) (verdict review.ComparisonVerdict, err error) {
	const op = "compare analyses"

	if r.agent == nil {
		return review.ComparisonVerdict{}, domain.WrapError(domain.ErrReconciliation, op, errors.New("no comparison agent configured"))
	}
	defer func() {
		if rec := recover(); rec != nil {
			verdict = review.ComparisonVerdict{}
			err = domain.WrapError(domain.ErrReconciliation, op, fmt.Errorf("comparison agent panic: %v", rec))
		}
	}()

	raw, err := r.agent.Complete(ctx, review.BuildComparisonPrompt(primary, secondary, prescription, r.prompts))
	if err != nil {
		return review.ComparisonVerdict{}, domain.WrapError(domain.ErrReconciliation, op, err)
	}
	verdict, err = review.DecodeComparison(raw)
	if err != nil {
		return review.ComparisonVerdict{}, domain.WrapError(domain.ErrReconciliation, op, err)
	}
	return verdict, nil
}

// mergeVerdict applies the agent's answer on top of the local facts. Safety
// critical fields can only be raised by the agent, never lowered.
func mergeVerdict(primary, secondary domain.Analysis, verdict review.ComparisonVerdict) domain.ComparisonResult {
	diff := domain.ScoreDifference(primary, secondary)
	totalConflict := domain.TotalStatusConflict(primary.Status, secondary.Status)

	result := domain.ComparisonResult{
		NeedsHumanReview: totalConflict || (verdict.NeedsHumanReview != nil && *verdict.NeedsHumanReview),
		ScoreDifference:  diff,
		Agreement:        domain.AgreementMedium,
		Discrepancies: domain.Discrepancies{
			Status: domain.StatusDiscrepancy{
				Primary:     primary.Status,
				Secondary:   secondary.Status,
				Conflict:    primary.Status != secondary.Status,
				Differences: []string{},
			},
		},
		FinalRecommendation: defaultFinalRecommendation,
		ComparisonSummary:   defaultComparisonSummary(diff),
	}

	if agreement := domain.Agreement(verdict.Agreement); agreement.Valid() {
		result.Agreement = agreement
	}
	if status := verdict.Discrepancies.Status; status != nil {
		if status.Conflict != nil {
			result.Discrepancies.Status.Conflict = *status.Conflict
		}
		result.Discrepancies.Status.Differences = nonNilStrings(status.Differences)
	}
	for _, category := range domain.FindingCategories {
		target := result.Discrepancies.Category(category)
		target.Differences = []string{}
		cv := verdict.Category(category)
		if cv == nil {
			continue
		}
		target.Conflict = cv.Conflict != nil && *cv.Conflict
		target.Differences = nonNilStrings(cv.Differences)
	}
	if verdict.FinalRecommendation != "" {
		result.FinalRecommendation = verdict.FinalRecommendation
	}
	if verdict.ComparisonSummary != "" {
		result.ComparisonSummary = verdict.ComparisonSummary
	}
	return result
}

// FallbackComparison builds a ComparisonResult from the two analyses alone.
// It makes no external calls and cannot fail.
func FallbackComparison(primary, secondary domain.Analysis) domain.ComparisonResult {
	diff := domain.ScoreDifference(primary, secondary)
	totalConflict := domain.TotalStatusConflict(primary.Status, secondary.Status)

	result := domain.ComparisonResult{
		NeedsHumanReview: totalConflict,
		ScoreDifference:  diff,
		Agreement:        fallbackAgreement(totalConflict, diff),
		Discrepancies: domain.Discrepancies{
			Status: domain.StatusDiscrepancy{
				Primary:     primary.Status,
				Secondary:   secondary.Status,
				Conflict:    primary.Status != secondary.Status,
				Differences: []string{},
			},
		},
		FinalRecommendation: fallbackFinalRecommendation,
		ComparisonSummary:   fmt.Sprintf("Automatic comparison could not be completed. Score difference: %d points.", diff),
	}

	primaryFlags := primary.CategoryFlags()
	secondaryFlags := secondary.CategoryFlags()
	for _, category := range domain.FindingCategories {
		target := result.Discrepancies.Category(category)
		target.Conflict = primaryFlags[category] != secondaryFlags[category]
		target.Differences = []string{fallbackDifferenceNote}
	}
	return result
}

func fallbackAgreement(totalConflict bool, scoreDifference int) domain.Agreement {
	switch {
	case totalConflict:
		return domain.AgreementLow
	case scoreDifference > agreementScoreGap:
		return domain.AgreementMedium
	default:
		return domain.AgreementHigh
	}
}

func defaultComparisonSummary(scoreDifference int) string {
	if scoreDifference > reviewHintScoreGap {
		return fmt.Sprintf("The analyses differ by %d points. A closer review is recommended.", scoreDifference)
	}
	return fmt.Sprintf("The analyses differ by %d points. The difference is acceptable.", scoreDifference)
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
