package review

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

func TestBuildReviewPromptIncludesPatientContext(t *testing.T) {
	req := sampleRequest()
	now := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)

	got := BuildReviewPrompt(req.Prescription, req.Patient, PromptOptions{Language: "Spanish", Now: func() time.Time { return now }})

	for _, want := range []string{"Tension headache", "Ibuprofen 400mg via oral, every 8 hours", "Penicillin", "Warfarin 5mg", "44 years", "64.5 kg"} {
		if !strings.Contains(got.User, want) {
			t.Fatalf("expected user prompt to contain %q:\n%s", want, got.User)
		}
	}
	if strings.Contains(got.User, "Amoxicillin") {
		t.Fatalf("inactive prior medication leaked into prompt:\n%s", got.User)
	}
	if !strings.Contains(got.System, "Spanish") {
		t.Fatalf("expected response language in system prompt")
	}
	if got.Temperature != reviewTemperature || !got.JSON {
		t.Fatalf("unexpected generation settings: %+v", got)
	}
}

func TestBuildReviewPromptFallsBackToExplicitAge(t *testing.T) {
	req := sampleRequest()
	req.Patient.BirthDate = ""
	req.Patient.Age = intPtr(7)
	req.Patient.WeightKg = 0
	req.Patient.Allergies = nil

	got := BuildReviewPrompt(req.Prescription, req.Patient, PromptOptions{})

	for _, want := range []string{"7 years", "Weight: unknown", "Known allergies: None", "in English"} {
		if !strings.Contains(got.User+got.System, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
}

func TestBuildComparisonPromptCarriesScoreDifference(t *testing.T) {
	req := sampleRequest()
	a := domain.Analysis{Reviewer: "openai", Status: domain.AnalysisApproved, OverallScore: 90}
	b := domain.Analysis{Reviewer: "gemini", Status: domain.AnalysisRejected, OverallScore: 30,
		Findings: domain.Findings{Interactions: domain.SafetyFinding{Issues: []string{"bleeding risk"}}}}

	got := BuildComparisonPrompt(a, b, req.Prescription, PromptOptions{})

	for _, want := range []string{"SCORE DIFFERENCE: 60 points", "PRIMARY ANALYSIS (openai)", "SECONDARY ANALYSIS (gemini)", "bleeding risk", "Status: rejected"} {
		if !strings.Contains(got.User, want) {
			t.Fatalf("expected comparison prompt to contain %q:\n%s", want, got.User)
		}
	}
	if !strings.Contains(got.System, "needsHumanReview") {
		t.Fatalf("expected human review rule in system prompt")
	}
	if got.Temperature != comparisonTemperature || got.MaxTokens != comparisonMaxTokens {
		t.Fatalf("unexpected comparison settings: %+v", got)
	}
}
