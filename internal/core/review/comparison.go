package review

import (
	"encoding/json"
	"fmt"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// CategoryVerdict is the comparison agent's opinion on one category. Nil
// fields mean the agent did not say.
type CategoryVerdict struct {
	Conflict    *bool    `json:"conflict"`
	Differences []string `json:"differences"`
}

// ComparisonVerdict is the raw comparison agent answer before it is merged
// with the locally computed facts.
type ComparisonVerdict struct {
	NeedsHumanReview *bool  `json:"needsHumanReview"`
	Agreement        string `json:"agreement"`
	Discrepancies    struct {
		Status            *CategoryVerdict `json:"status"`
		Allergies         *CategoryVerdict `json:"allergies"`
		Interactions      *CategoryVerdict `json:"interactions"`
		Dosage            *CategoryVerdict `json:"dosage"`
		Contraindications *CategoryVerdict `json:"contraindications"`
	} `json:"discrepancies"`
	FinalRecommendation string `json:"finalRecommendation"`
	ComparisonSummary   string `json:"comparisonSummary"`
}

// Category returns the verdict for a finding category, nil when absent.
func (v *ComparisonVerdict) Category(c domain.Category) *CategoryVerdict {
	switch c {
	case domain.CategoryAllergies:
		return v.Discrepancies.Allergies
	case domain.CategoryInteractions:
		return v.Discrepancies.Interactions
	case domain.CategoryDosage:
		return v.Discrepancies.Dosage
	case domain.CategoryContraindications:
		return v.Discrepancies.Contraindications
	default:
		return nil
	}
}

// DecodeComparison parses the comparison agent output.
func DecodeComparison(raw string) (ComparisonVerdict, error) {
	cleaned := ExtractJSONObject(raw)
	if cleaned == "" {
		return ComparisonVerdict{}, domain.WrapError(domain.ErrMalformedResponse, "decode comparison", fmt.Errorf("empty model output"))
	}
	var verdict ComparisonVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return ComparisonVerdict{}, domain.WrapError(domain.ErrMalformedResponse, "decode comparison", err)
	}
	return verdict, nil
}
