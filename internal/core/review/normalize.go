package review

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// Normalizer turns raw model output into a validated Analysis.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

type findingPayload struct {
	Safe        *bool    `json:"safe"`
	Appropriate *bool    `json:"appropriate"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

type analysisPayload struct {
	Status       string  `json:"status"`
	OverallScore float64 `json:"overallScore"`
	Findings     struct {
		Allergies         findingPayload `json:"allergies"`
		Interactions      findingPayload `json:"interactions"`
		Dosage            findingPayload `json:"dosage"`
		Contraindications findingPayload `json:"contraindications"`
	} `json:"findings"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	CriticalAlerts  []string `json:"criticalAlerts"`
}

// Normalize parses raw, validates it against the analysis schema and repairs
// optional lists. The timestamp is always stamped locally in UTC.
func (n *Normalizer) Normalize(raw string) (domain.Analysis, error) {
	cleaned := ExtractJSONObject(raw)
	if cleaned == "" {
		return domain.Analysis{}, domain.WrapError(domain.ErrMalformedResponse, "normalize analysis", fmt.Errorf("empty model output"))
	}
	if err := validateAnalysisJSON([]byte(cleaned)); err != nil {
		return domain.Analysis{}, domain.WrapError(domain.ErrMalformedResponse, "normalize analysis", err)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return domain.Analysis{}, domain.WrapError(domain.ErrMalformedResponse, "normalize analysis", err)
	}

	analysis := domain.Analysis{
		Status:       domain.AnalysisStatus(payload.Status),
		OverallScore: int(math.Round(payload.OverallScore)),
		Findings: domain.Findings{
			Allergies:         safetyFinding(payload.Findings.Allergies),
			Interactions:      safetyFinding(payload.Findings.Interactions),
			Dosage:            dosageFinding(payload.Findings.Dosage),
			Contraindications: safetyFinding(payload.Findings.Contraindications),
		},
		Recommendations: nonNil(payload.Recommendations),
		CriticalAlerts:  nonNil(payload.CriticalAlerts),
		Summary:         strings.TrimSpace(payload.Summary),
		Timestamp:       n.now().UTC(),
	}
	return analysis, nil
}

// ExtractJSONObject strips markdown fences and surrounding prose and returns
// the outermost JSON object, or "" when there is none.
func ExtractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func safetyFinding(p findingPayload) domain.SafetyFinding {
	return domain.SafetyFinding{
		Safe:        p.Safe != nil && *p.Safe,
		Issues:      nonNil(p.Issues),
		Suggestions: nonNil(p.Suggestions),
	}
}

func dosageFinding(p findingPayload) domain.DosageFinding {
	return domain.DosageFinding{
		Appropriate: p.Appropriate != nil && *p.Appropriate,
		Issues:      nonNil(p.Issues),
		Suggestions: nonNil(p.Suggestions),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
