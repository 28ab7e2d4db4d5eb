package review

import (
	"testing"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

func TestDecodeComparisonKeepsOmittedFieldsNil(t *testing.T) {
	raw := "```json\n" + `{
	  "agreement": "low",
	  "discrepancies": {
	    "dosage": {"conflict": true, "differences": ["400mg vs 200mg"]}
	  },
	  "finalRecommendation": "Reduce dose."
	}` + "\n```"

	got, err := DecodeComparison(raw)
	if err != nil {
		t.Fatalf("DecodeComparison() error = %v", err)
	}
	if got.NeedsHumanReview != nil {
		t.Fatalf("expected needsHumanReview to stay nil")
	}
	dosage := got.Category(domain.CategoryDosage)
	if dosage == nil || dosage.Conflict == nil || !*dosage.Conflict {
		t.Fatalf("expected dosage conflict, got %+v", dosage)
	}
	if got.Category(domain.CategoryAllergies) != nil || got.Discrepancies.Status != nil {
		t.Fatalf("expected absent categories to be nil")
	}
}

func TestDecodeComparisonRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no json", `{"needsHumanReview": "yes"}`} {
		if _, err := DecodeComparison(raw); !domain.IsKind(err, domain.ErrMalformedResponse) {
			t.Fatalf("DecodeComparison(%q) expected ErrMalformedResponse, got %v", raw, err)
		}
	}
}
