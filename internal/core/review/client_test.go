package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

type completerStub struct {
	response string
	err      error
	captured domain.CompletionRequest
}

func (s *completerStub) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	s.captured = req
	return s.response, s.err
}

func intPtr(v int) *int { return &v }

func sampleRequest() domain.EvaluationRequest {
	return domain.EvaluationRequest{
		Prescription: domain.Prescription{
			Diagnosis: "Tension headache",
			Medications: []domain.Medication{
				{Name: "Ibuprofen", Route: "oral", Dose: "400", Unit: "mg", Frequency: "8", FrequencyUnit: "hours"},
			},
		},
		Patient: domain.Patient{
			Name:      "Jane Roe",
			BirthDate: "1980-06-01",
			WeightKg:  64.5,
			Allergies: []domain.Allergy{{Allergen: "Penicillin", Severity: "severe"}},
			PriorMedications: []domain.PriorMedication{
				{GenericName: "Warfarin", Status: "Active", Dose: "5", Unit: "mg"},
				{GenericName: "Amoxicillin", Status: "suspended", Dose: "500", Unit: "mg"},
			},
		},
	}
}

func TestClientEvaluateSetsReviewerName(t *testing.T) {
	stub := &completerStub{response: validAnalysis}
	client := NewClient("openai", stub, NewNormalizer(func() time.Time { return fixedNow }), PromptOptions{})

	req := sampleRequest()
	got, err := client.Evaluate(context.Background(), req.Prescription, req.Patient)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.Reviewer != "openai" {
		t.Fatalf("expected reviewer name openai, got %q", got.Reviewer)
	}
	if !stub.captured.JSON || stub.captured.MaxTokens != reviewMaxTokens {
		t.Fatalf("unexpected completion request: %+v", stub.captured)
	}
}

func TestClientEvaluateWrapsProviderError(t *testing.T) {
	providerErr := errors.New("connection reset")
	stub := &completerStub{err: domain.WrapError(domain.ErrTemporary, "openai chat", providerErr)}
	client := NewClient("openai", stub, nil, PromptOptions{})

	req := sampleRequest()
	_, err := client.Evaluate(context.Background(), req.Prescription, req.Patient)
	if !domain.IsKind(err, domain.ErrProviderCall) {
		t.Fatalf("expected ErrProviderCall, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, providerErr) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
}

func TestClientEvaluateReportsMalformedOutput(t *testing.T) {
	stub := &completerStub{response: "Sorry, I can't help with that."}
	client := NewClient("gemini", stub, nil, PromptOptions{})

	req := sampleRequest()
	_, err := client.Evaluate(context.Background(), req.Prescription, req.Patient)
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if !strings.Contains(err.Error(), "reviewer gemini") {
		t.Fatalf("expected reviewer name in error, got %v", err)
	}
}
