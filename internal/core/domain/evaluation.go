package domain

import "time"

type EvaluationStatus string

const (
	EvaluationQueued     EvaluationStatus = "queued"
	EvaluationInProgress EvaluationStatus = "in_progress"
	EvaluationCompleted  EvaluationStatus = "completed"
	EvaluationFailed     EvaluationStatus = "failed"
)

// EvaluationResult is the outcome of one orchestration run: both reviewer
// verdicts and their reconciliation.
type EvaluationResult struct {
	Primary    Analysis         `json:"primary"`
	Secondary  Analysis         `json:"secondary"`
	Comparison ComparisonResult `json:"comparison"`
}

// Evaluation is the audit record of a submitted request.
type Evaluation struct {
	ID        string            `json:"id"`
	Status    EvaluationStatus  `json:"status"`
	Request   EvaluationRequest `json:"request"`
	Result    *EvaluationResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (e *Evaluation) InProgress() bool {
	return e.Status == EvaluationQueued || e.Status == EvaluationInProgress
}

func (e *Evaluation) NeedsHumanReview() bool {
	return e.Result != nil && e.Result.Comparison.NeedsHumanReview
}

// ReviewNotification is published when an evaluation must be checked by a human.
type ReviewNotification struct {
	EvaluationID    string         `json:"evaluation_id"`
	Diagnosis       string         `json:"diagnosis"`
	PrimaryStatus   AnalysisStatus `json:"primary_status"`
	SecondaryStatus AnalysisStatus `json:"secondary_status"`
	ScoreDifference int            `json:"score_difference"`
	Agreement       Agreement      `json:"agreement"`
	CreatedAt       time.Time      `json:"created_at"`
}

// CompletionRequest is a provider-neutral prompt: adapters decide how the
// system and user parts are sent.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	JSON        bool
}
