package domain

type Agreement string

const (
	AgreementHigh   Agreement = "high"
	AgreementMedium Agreement = "medium"
	AgreementLow    Agreement = "low"
)

func (a Agreement) Valid() bool {
	switch a {
	case AgreementHigh, AgreementMedium, AgreementLow:
		return true
	default:
		return false
	}
}

type CategoryDiscrepancy struct {
	Conflict    bool     `json:"conflict"`
	Differences []string `json:"differences"`
}

type StatusDiscrepancy struct {
	Primary     AnalysisStatus `json:"primary"`
	Secondary   AnalysisStatus `json:"secondary"`
	Conflict    bool           `json:"conflict"`
	Differences []string       `json:"differences"`
}

type Discrepancies struct {
	Status            StatusDiscrepancy   `json:"status"`
	Allergies         CategoryDiscrepancy `json:"allergies"`
	Interactions      CategoryDiscrepancy `json:"interactions"`
	Dosage            CategoryDiscrepancy `json:"dosage"`
	Contraindications CategoryDiscrepancy `json:"contraindications"`
}

// Category returns a pointer to the discrepancy record of a finding category.
func (d *Discrepancies) Category(c Category) *CategoryDiscrepancy {
	switch c {
	case CategoryAllergies:
		return &d.Allergies
	case CategoryInteractions:
		return &d.Interactions
	case CategoryDosage:
		return &d.Dosage
	case CategoryContraindications:
		return &d.Contraindications
	default:
		return nil
	}
}

type ComparisonResult struct {
	NeedsHumanReview    bool          `json:"needsHumanReview"`
	ScoreDifference     int           `json:"scoreDifference"`
	Agreement           Agreement     `json:"agreement"`
	Discrepancies       Discrepancies `json:"discrepancies"`
	FinalRecommendation string        `json:"finalRecommendation"`
	ComparisonSummary   string        `json:"comparisonSummary"`
}

// ScoreDifference is |a - b|; symmetric and never negative.
func ScoreDifference(a, b Analysis) int {
	diff := a.OverallScore - b.OverallScore
	if diff < 0 {
		return -diff
	}
	return diff
}

// TotalStatusConflict reports whether one reviewer approved while the other
// rejected. It is the only unconditional trigger for human review.
func TotalStatusConflict(a, b AnalysisStatus) bool {
	return (a == AnalysisApproved && b == AnalysisRejected) ||
		(a == AnalysisRejected && b == AnalysisApproved)
}
