package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

type EvaluationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db, now: time.Now}
}

const evaluationColumns = `id, status, request, result, error_message, created_at, updated_at`

func (r *EvaluationRepository) Create(ctx context.Context, evaluation *domain.Evaluation) error {
	requestJSON, err := json.Marshal(evaluation.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO evaluations (id, status, request, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		evaluation.ID, string(evaluation.Status), requestJSON, evaluation.Error, evaluation.CreatedAt, evaluation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+evaluationColumns+`
FROM evaluations
WHERE id = $1
`, id)

	evaluation, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEvaluationNotFound, "get evaluation", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return evaluation, nil
}

func (r *EvaluationRepository) UpdateStatus(ctx context.Context, id string, status domain.EvaluationStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE evaluations
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update evaluation status: %w", err)
	}
	return ensureAffected(res, "update evaluation status", id)
}

func (r *EvaluationRepository) SaveResult(ctx context.Context, id string, result domain.EvaluationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE evaluations
SET status = $2, result = $3, needs_human_review = $4, score_difference = $5, agreement = $6, error_message = '', updated_at = $7
WHERE id = $1
`,
		id, string(domain.EvaluationCompleted), resultJSON, result.Comparison.NeedsHumanReview,
		result.Comparison.ScoreDifference, string(result.Comparison.Agreement), r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save evaluation result: %w", err)
	}
	return ensureAffected(res, "save evaluation result", id)
}

func (r *EvaluationRepository) ListPendingReview(ctx context.Context, limit int) ([]domain.Evaluation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+evaluationColumns+`
FROM evaluations
WHERE needs_human_review AND status = $1
ORDER BY created_at DESC
LIMIT $2
`, string(domain.EvaluationCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending review: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Evaluation, 0, limit)
	for rows.Next() {
		evaluation, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *evaluation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending review: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var (
		evaluation domain.Evaluation
		status     string
		requestRaw []byte
		resultRaw  []byte
	)
	err := row.Scan(&evaluation.ID, &status, &requestRaw, &resultRaw, &evaluation.Error, &evaluation.CreatedAt, &evaluation.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}

	evaluation.Status = domain.EvaluationStatus(status)
	if err := json.Unmarshal(requestRaw, &evaluation.Request); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	if len(resultRaw) > 0 {
		var result domain.EvaluationResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		evaluation.Result = &result
	}
	return &evaluation, nil
}

func ensureAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrEvaluationNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
