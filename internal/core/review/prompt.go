package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

const (
	reviewTemperature     = 0.3
	reviewMaxTokens       = 2000
	comparisonTemperature = 0.2
	comparisonMaxTokens   = 1500
)

type PromptOptions struct {
	// Language of every free-text field in the model's answer.
	Language string
	Now      func() time.Time
}

func (o PromptOptions) normalize() PromptOptions {
	out := o
	if strings.TrimSpace(out.Language) == "" {
		out.Language = "English"
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

const analysisShape = `{
  "status": "approved|warning|rejected",
  "overallScore": 85,
  "findings": {
    "allergies": {"safe": true, "issues": [], "suggestions": []},
    "interactions": {"safe": true, "issues": [], "suggestions": []},
    "dosage": {"appropriate": true, "issues": [], "suggestions": []},
    "contraindications": {"safe": true, "issues": [], "suggestions": []}
  },
  "summary": "2-3 line summary",
  "recommendations": [],
  "criticalAlerts": []
}`

// BuildReviewPrompt renders the reviewer instruction for one prescription.
func BuildReviewPrompt(prescription domain.Prescription, patient domain.Patient, opts PromptOptions) domain.CompletionRequest {
	opts = opts.normalize()

	system := fmt.Sprintf(`You are an expert clinical pharmacologist. You review medical prescriptions for safety and efficacy.

You must evaluate:
1. Patient allergies against every prescribed medication.
2. Drug-drug interactions with the medications the patient currently takes.
3. Whether each dose is appropriate for the patient's age and weight.
4. Contraindications for the stated diagnosis and patient profile.

Classify the prescription as:
- "approved" when it is completely safe,
- "warning" when it is viable but needs precautions,
- "rejected" when it is dangerous or has critical errors.

overallScore is an integer from 0 to 100 where higher means safer.
Write every text field in %s.
Respond ONLY with one valid JSON object in exactly this shape, with no markdown and no extra text:
%s`, opts.Language, analysisShape)

	user := fmt.Sprintf(`Analyze this prescription.

PATIENT:
- Name: %s
- Age: %s
- Weight: %s
- Known allergies: %s
- Currently active medications: %s

PRESCRIPTION:
- Diagnosis: %s
- Prescribed medications: %s`,
		strings.TrimSpace(patient.Name),
		formatAge(patient, opts.Now()),
		formatWeight(patient.WeightKg),
		joinOrNone(patient.AllergenNames()),
		joinOrNone(activeMedicationNames(patient)),
		strings.TrimSpace(prescription.Diagnosis),
		joinOrNone(medicationLines(prescription.Medications)),
	)

	return domain.CompletionRequest{
		System:      system,
		User:        user,
		Temperature: reviewTemperature,
		MaxTokens:   reviewMaxTokens,
		JSON:        true,
	}
}

// BuildComparisonPrompt asks the comparison agent to contrast two analyses of
// the same prescription.
func BuildComparisonPrompt(primary, secondary domain.Analysis, prescription domain.Prescription, opts PromptOptions) domain.CompletionRequest {
	opts = opts.normalize()

	system := fmt.Sprintf(`You are a senior medical supervisor comparing two prescription analyses produced by independent AI systems.

Your task:
1. Identify significant discrepancies between both analyses.
2. Decide whether the differences are critical and require human review.
3. Provide one consolidated final recommendation.

Rules for "needsHumanReview":
- Set it to true ONLY on a total conflict: one analysis is "approved" and the other is "rejected".
- Never set it to true only because the scores differ.

Write every text field in %s. Respond ONLY with valid JSON.`, opts.Language)

	user := fmt.Sprintf(`Compare these two analyses of the same prescription.

PRESCRIPTION:
- Diagnosis: %s
- Medications: %s

PRIMARY ANALYSIS (%s):
%s

SECONDARY ANALYSIS (%s):
%s

SCORE DIFFERENCE: %d points

Answer with exactly this JSON:
{
  "needsHumanReview": false,
  "agreement": "high|medium|low",
  "discrepancies": {
    "status": {"conflict": false, "differences": []},
    "allergies": {"conflict": false, "differences": []},
    "interactions": {"conflict": false, "differences": []},
    "dosage": {"conflict": false, "differences": []},
    "contraindications": {"conflict": false, "differences": []}
  },
  "finalRecommendation": "consolidated recommendation based on both analyses",
  "comparisonSummary": "agreement level and main discrepancies"
}`,
		strings.TrimSpace(prescription.Diagnosis),
		joinOrNone(shortMedicationLines(prescription.Medications)),
		reviewerLabel(primary, "primary"),
		describeAnalysis(primary),
		reviewerLabel(secondary, "secondary"),
		describeAnalysis(secondary),
		domain.ScoreDifference(primary, secondary),
	)

	return domain.CompletionRequest{
		System:      system,
		User:        user,
		Temperature: comparisonTemperature,
		MaxTokens:   comparisonMaxTokens,
		JSON:        true,
	}
}

func describeAnalysis(a domain.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Status: %s\n", a.Status)
	fmt.Fprintf(&b, "- Score: %d/100\n", a.OverallScore)
	fmt.Fprintf(&b, "- Allergies safe: %s\n", yesNo(a.Findings.Allergies.Safe))
	writeList(&b, "  Allergy issues", a.Findings.Allergies.Issues)
	fmt.Fprintf(&b, "- Interactions safe: %s\n", yesNo(a.Findings.Interactions.Safe))
	writeList(&b, "  Interaction issues", a.Findings.Interactions.Issues)
	fmt.Fprintf(&b, "- Dosage appropriate: %s\n", yesNo(a.Findings.Dosage.Appropriate))
	writeList(&b, "  Dosage issues", a.Findings.Dosage.Issues)
	fmt.Fprintf(&b, "- Contraindications safe: %s\n", yesNo(a.Findings.Contraindications.Safe))
	writeList(&b, "  Contraindication issues", a.Findings.Contraindications.Issues)
	fmt.Fprintf(&b, "- Summary: %s\n", strings.TrimSpace(a.Summary))
	fmt.Fprintf(&b, "- Critical alerts: %s", joinOrNone(a.CriticalAlerts))
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, "; "))
}

func reviewerLabel(a domain.Analysis, fallback string) string {
	if strings.TrimSpace(a.Reviewer) != "" {
		return a.Reviewer
	}
	return fallback
}

func formatAge(patient domain.Patient, now time.Time) string {
	age, ok := patient.AgeAt(now)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%d years", age)
}

func formatWeight(kg float64) string {
	if kg <= 0 {
		return "unknown"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", kg), "0"), ".") + " kg"
}

func activeMedicationNames(patient domain.Patient) []string {
	active := patient.ActiveMedications()
	out := make([]string, 0, len(active))
	for _, med := range active {
		name := strings.TrimSpace(med.GenericName)
		if name == "" {
			continue
		}
		if dose := strings.TrimSpace(med.Dose + med.Unit); dose != "" {
			name += " " + dose
		}
		out = append(out, name)
	}
	return out
}

func medicationLines(meds []domain.Medication) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		line := fmt.Sprintf("%s %s%s via %s", strings.TrimSpace(m.Name), strings.TrimSpace(m.Dose), strings.TrimSpace(m.Unit), strings.TrimSpace(m.Route))
		switch {
		case m.SingleDose:
			line += ", single dose"
		case strings.TrimSpace(m.Frequency) != "":
			line += fmt.Sprintf(", every %s %s", strings.TrimSpace(m.Frequency), strings.TrimSpace(m.FrequencyUnit))
		}
		out = append(out, strings.TrimSpace(line))
	}
	return out
}

func shortMedicationLines(meds []domain.Medication) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		out = append(out, fmt.Sprintf("%s %s%s", strings.TrimSpace(m.Name), strings.TrimSpace(m.Dose), strings.TrimSpace(m.Unit)))
	}
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
