package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// Completer sends one prompt to a backing AI provider and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Reviewer produces one normalized Analysis for a prescription.
type Reviewer interface {
	Name() string
	Evaluate(ctx context.Context, prescription domain.Prescription, patient domain.Patient) (domain.Analysis, error)
}

// EvaluationRepository persists the evaluation audit trail.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *domain.Evaluation) error
	GetByID(ctx context.Context, id string) (*domain.Evaluation, error)
	UpdateStatus(ctx context.Context, id string, status domain.EvaluationStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result domain.EvaluationResult) error
	ListPendingReview(ctx context.Context, limit int) ([]domain.Evaluation, error)
}

// MessageQueue carries async evaluation jobs and human-review notifications.
type MessageQueue interface {
	PublishEvaluationRequested(ctx context.Context, evaluationID string) error
	SubscribeEvaluationRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishReviewRequired(ctx context.Context, notification domain.ReviewNotification) error
}

// ReportArchive keeps evaluation reports for later audit.
type ReportArchive interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// EvaluationObserver receives evaluation telemetry. Implementations must be
// safe for concurrent use.
type EvaluationObserver interface {
	EvaluationStarted()
	EvaluationFinished(duration time.Duration, err error)
	ReviewerFinished(reviewer string, duration time.Duration, err error)
	ComparisonFinished(result domain.ComparisonResult, degraded bool)
}
