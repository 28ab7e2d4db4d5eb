package domain

import "time"

type AnalysisStatus string

const (
	AnalysisApproved AnalysisStatus = "approved"
	AnalysisWarning  AnalysisStatus = "warning"
	AnalysisRejected AnalysisStatus = "rejected"
)

func (s AnalysisStatus) Valid() bool {
	switch s {
	case AnalysisApproved, AnalysisWarning, AnalysisRejected:
		return true
	default:
		return false
	}
}

// SafetyFinding is the sub-report for allergies, interactions and
// contraindications.
type SafetyFinding struct {
	Safe        bool     `json:"safe"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

type DosageFinding struct {
	Appropriate bool     `json:"appropriate"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

type Findings struct {
	Allergies         SafetyFinding `json:"allergies"`
	Interactions      SafetyFinding `json:"interactions"`
	Dosage            DosageFinding `json:"dosage"`
	Contraindications SafetyFinding `json:"contraindications"`
}

// Analysis is the verdict of a single reviewer. Timestamp is assigned locally
// by the normalizer, never taken from the model output.
type Analysis struct {
	Reviewer        string         `json:"reviewer,omitempty"`
	Status          AnalysisStatus `json:"status"`
	OverallScore    int            `json:"overallScore"`
	Findings        Findings       `json:"findings"`
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
	CriticalAlerts  []string       `json:"criticalAlerts"`
	Timestamp       time.Time      `json:"timestamp"`
}

// CategoryFlags returns the boolean safety flag of every finding category keyed
// by category name.
func (a Analysis) CategoryFlags() map[Category]bool {
	return map[Category]bool{
		CategoryAllergies:         a.Findings.Allergies.Safe,
		CategoryInteractions:      a.Findings.Interactions.Safe,
		CategoryDosage:            a.Findings.Dosage.Appropriate,
		CategoryContraindications: a.Findings.Contraindications.Safe,
	}
}

type Category string

const (
	CategoryAllergies         Category = "allergies"
	CategoryInteractions      Category = "interactions"
	CategoryDosage            Category = "dosage"
	CategoryContraindications Category = "contraindications"
)

// FindingCategories is the fixed order used for prompts and comparisons.
var FindingCategories = []Category{
	CategoryAllergies,
	CategoryInteractions,
	CategoryDosage,
	CategoryContraindications,
}
