package ports

import (
	"context"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// PrescriptionEvaluator runs a synchronous evaluation and records it.
type PrescriptionEvaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error)
}

// EvaluationSubmitter queues an evaluation for the worker.
type EvaluationSubmitter interface {
	Submit(ctx context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error)
}

// EvaluationReader is the read model for evaluation state, including the
// in-progress signal.
type EvaluationReader interface {
	Get(ctx context.Context, id string) (*domain.Evaluation, error)
	ListPendingReview(ctx context.Context, limit int) ([]domain.Evaluation, error)
}

// EvaluationProcessor is the inbound contract of the async worker.
type EvaluationProcessor interface {
	ProcessByID(ctx context.Context, evaluationID string) error
}
