package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
)

const (
	defaultPendingReviewLimit = 20
	maxPendingReviewLimit     = 100

	// persistTimeout bounds the writes that record an outcome after the
	// caller may have gone away.
	persistTimeout = 15 * time.Second
)

type evaluationRunner interface {
	Run(ctx context.Context, req domain.EvaluationRequest) (domain.EvaluationResult, error)
}

// EvaluationService records every evaluation and its outcome around the
// orchestrator. Queue and archive are optional.
type EvaluationService struct {
	repo    ports.EvaluationRepository
	runner  evaluationRunner
	queue   ports.MessageQueue
	archive ports.ReportArchive
	now     func() time.Time
}

func NewEvaluationService(
	repo ports.EvaluationRepository,
	runner evaluationRunner,
	queue ports.MessageQueue,
	archive ports.ReportArchive,
) *EvaluationService {
	return &EvaluationService{
		repo:    repo,
		runner:  runner,
		queue:   queue,
		archive: archive,
		now:     time.Now,
	}
}

func (s *EvaluationService) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	evaluation, err := s.create(ctx, req, domain.EvaluationInProgress)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, evaluation)
}

func (s *EvaluationService) Submit(ctx context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	if s.queue == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "submit evaluation", errors.New("message queue is not configured"))
	}

	evaluation, err := s.create(ctx, req, domain.EvaluationQueued)
	if err != nil {
		return nil, err
	}

	if err := s.queue.PublishEvaluationRequested(ctx, evaluation.ID); err != nil {
		persistCtx, cancel := detached(ctx)
		defer cancel()
		if failErr := s.markFailed(persistCtx, evaluation.ID, err); failErr != nil {
			return nil, fmt.Errorf("publish evaluation request: %w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("publish evaluation request: %w", err)
	}
	return evaluation, nil
}

// ProcessByID runs a queued evaluation. Completed evaluations are skipped so a
// redelivered message does not call the providers twice.
func (s *EvaluationService) ProcessByID(ctx context.Context, evaluationID string) error {
	evaluation, err := s.repo.GetByID(ctx, evaluationID)
	if err != nil {
		return fmt.Errorf("fetch evaluation by id: %w", err)
	}
	if evaluation.Status == domain.EvaluationCompleted {
		slog.Info("evaluation_already_completed", "evaluation_id", evaluationID)
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, evaluationID, domain.EvaluationInProgress, ""); err != nil {
		return fmt.Errorf("set status=in_progress: %w", err)
	}
	evaluation.Status = domain.EvaluationInProgress

	_, err = s.execute(ctx, evaluation)
	return err
}

func (s *EvaluationService) Get(ctx context.Context, id string) (*domain.Evaluation, error) {
	evaluation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return evaluation, nil
}

func (s *EvaluationService) ListPendingReview(ctx context.Context, limit int) ([]domain.Evaluation, error) {
	switch {
	case limit <= 0:
		limit = defaultPendingReviewLimit
	case limit > maxPendingReviewLimit:
		limit = maxPendingReviewLimit
	}
	items, err := s.repo.ListPendingReview(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	return items, nil
}

func (s *EvaluationService) create(ctx context.Context, req domain.EvaluationRequest, status domain.EvaluationStatus) (*domain.Evaluation, error) {
	now := s.now().UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	evaluation := &domain.Evaluation{
		ID:        uuid.NewString(),
		Status:    status,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, evaluation); err != nil {
		return nil, fmt.Errorf("create evaluation record: %w", err)
	}
	return evaluation, nil
}

// execute runs the reviewers under the caller context but records the outcome
// under a detached one, so a cancelled request never leaves the record
// in_progress.
func (s *EvaluationService) execute(ctx context.Context, evaluation *domain.Evaluation) (*domain.Evaluation, error) {
	result, err := s.runner.Run(ctx, evaluation.Request)

	persistCtx, cancel := detached(ctx)
	defer cancel()

	if err != nil {
		if failErr := s.markFailed(persistCtx, evaluation.ID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	if err := s.repo.SaveResult(persistCtx, evaluation.ID, result); err != nil {
		return nil, fmt.Errorf("save evaluation result: %w", err)
	}
	evaluation.Status = domain.EvaluationCompleted
	evaluation.Result = &result
	evaluation.Error = ""
	evaluation.UpdatedAt = s.now().UTC()

	s.archiveReport(persistCtx, evaluation)
	s.notifyReview(persistCtx, evaluation)
	return evaluation, nil
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func (s *EvaluationService) markFailed(ctx context.Context, evaluationID string, runErr error) error {
	if runErr == nil {
		return nil
	}
	return s.repo.UpdateStatus(ctx, evaluationID, domain.EvaluationFailed, runErr.Error())
}

func (s *EvaluationService) archiveReport(ctx context.Context, evaluation *domain.Evaluation) {
	if s.archive == nil {
		return
	}
	body, err := json.MarshalIndent(evaluation, "", "  ")
	if err != nil {
		slog.Warn("evaluation_archive_failed", "evaluation_id", evaluation.ID, "error", err)
		return
	}
	if err := s.archive.Save(ctx, ArchiveKey(evaluation.ID), bytes.NewReader(body)); err != nil {
		slog.Warn("evaluation_archive_failed", "evaluation_id", evaluation.ID, "error", err)
	}
}

func (s *EvaluationService) notifyReview(ctx context.Context, evaluation *domain.Evaluation) {
	if s.queue == nil || !evaluation.NeedsHumanReview() {
		return
	}
	result := evaluation.Result
	notification := domain.ReviewNotification{
		EvaluationID:    evaluation.ID,
		Diagnosis:       evaluation.Request.Prescription.Diagnosis,
		PrimaryStatus:   result.Primary.Status,
		SecondaryStatus: result.Secondary.Status,
		ScoreDifference: result.Comparison.ScoreDifference,
		Agreement:       result.Comparison.Agreement,
		CreatedAt:       evaluation.UpdatedAt,
	}
	if err := s.queue.PublishReviewRequired(ctx, notification); err != nil {
		slog.Warn("review_notification_failed", "evaluation_id", evaluation.ID, "error", err)
	}
}

// ArchiveKey is the archive object name of an evaluation report.
func ArchiveKey(evaluationID string) string {
	return fmt.Sprintf("evaluations/%s.json", evaluationID)
}
