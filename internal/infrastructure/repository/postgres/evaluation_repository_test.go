package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*EvaluationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewEvaluationRepository(db)
	repo.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func sampleRequestJSON(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(domain.EvaluationRequest{
		Prescription: domain.Prescription{Diagnosis: "Migraine", Medications: []domain.Medication{{Name: "Sumatriptan", Route: "oral", Dose: "50", Unit: "mg", SingleDose: true}}},
		Patient:      domain.Patient{Name: "Ana", BirthDate: "1990-01-01", WeightKg: 60},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return raw
}

func TestCreateInsertsRequestJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs("eval-1", string(domain.EvaluationQueued), sqlmock.AnyArg(), "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Evaluation{ID: "eval-1", Status: domain.EvaluationQueued, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, status, request, result").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrEvaluationNotFound) {
		t.Fatalf("expected ErrEvaluationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesResult(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	resultJSON, _ := json.Marshal(domain.EvaluationResult{
		Comparison: domain.ComparisonResult{NeedsHumanReview: true, ScoreDifference: 50, Agreement: domain.AgreementLow},
	})
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "status", "request", "result", "error_message", "created_at", "updated_at"}).
		AddRow("eval-1", "completed", sampleRequestJSON(t), resultJSON, "", created, created)
	mock.ExpectQuery("SELECT id, status, request, result").WithArgs("eval-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "eval-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.EvaluationCompleted || got.Request.Prescription.Diagnosis != "Migraine" {
		t.Fatalf("unexpected evaluation %+v", got)
	}
	if !got.NeedsHumanReview() || got.Result.Comparison.ScoreDifference != 50 {
		t.Fatalf("expected decoded comparison, got %+v", got.Result)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE evaluations").
		WithArgs("missing", string(domain.EvaluationInProgress), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.EvaluationInProgress, "")
	if !domain.IsKind(err, domain.ErrEvaluationNotFound) {
		t.Fatalf("expected ErrEvaluationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveResultDenormalizesReviewFlag(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	result := domain.EvaluationResult{Comparison: domain.ComparisonResult{NeedsHumanReview: true, ScoreDifference: 35, Agreement: domain.AgreementLow}}
	mock.ExpectExec("UPDATE evaluations").
		WithArgs("eval-1", string(domain.EvaluationCompleted), sqlmock.AnyArg(), true, 35, "low", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveResult(context.Background(), "eval-1", result); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListPendingReview(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "status", "request", "result", "error_message", "created_at", "updated_at"}).
		AddRow("eval-1", "completed", sampleRequestJSON(t), []byte(`{"comparison":{"needsHumanReview":true}}`), "", created, created).
		AddRow("eval-2", "completed", sampleRequestJSON(t), []byte(`{"comparison":{"needsHumanReview":true}}`), "", created, created)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE needs_human_review AND status = $1")).
		WithArgs("completed", 10).
		WillReturnRows(rows)

	got, err := repo.ListPendingReview(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPendingReview() error = %v", err)
	}
	if len(got) != 2 || got[1].ID != "eval-2" {
		t.Fatalf("unexpected evaluations: %+v", got)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS evaluations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
