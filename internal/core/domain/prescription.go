package domain

import (
	"strings"
	"time"
)

const (
	minDiagnosisLength    = 3
	priorMedicationActive = "active"
)

type Medication struct {
	Name          string `json:"name"`
	Route         string `json:"route"`
	Dose          string `json:"dose"`
	Unit          string `json:"unit"`
	SingleDose    bool   `json:"singleDose"`
	Frequency     string `json:"frequency,omitempty"`
	FrequencyUnit string `json:"frequencyUnit,omitempty"`
}

type Prescription struct {
	Diagnosis   string       `json:"diagnosis"`
	Medications []Medication `json:"medications"`
}

type Allergy struct {
	Allergen string `json:"allergen"`
	Severity string `json:"severity"`
	Reaction string `json:"reaction,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type PriorMedication struct {
	GenericName   string `json:"genericName"`
	Status        string `json:"status"`
	Concentration string `json:"concentration"`
	Route         string `json:"route"`
	Dose          string `json:"dose"`
	Unit          string `json:"unit"`
	Frequency     string `json:"frequency"`
	Indication    string `json:"indication,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type Patient struct {
	Name             string            `json:"name"`
	BirthDate        string            `json:"birthDate,omitempty"`
	Age              *int              `json:"age,omitempty"`
	WeightKg         float64           `json:"weightKg"`
	Allergies        []Allergy         `json:"allergies"`
	PriorMedications []PriorMedication `json:"priorMedications"`
}

// AgeAt returns the patient's age in whole years at now. A parseable birth date
// wins over the explicit age; ok is false when neither is usable.
func (p Patient) AgeAt(now time.Time) (int, bool) {
	if birth, ok := parseBirthDate(p.BirthDate); ok {
		age := now.Year() - birth.Year()
		if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
			age--
		}
		return age, true
	}
	if p.Age != nil {
		return *p.Age, true
	}
	return 0, false
}

// ActiveMedications filters prior medications down to the ones still taken.
func (p Patient) ActiveMedications() []PriorMedication {
	out := make([]PriorMedication, 0, len(p.PriorMedications))
	for _, med := range p.PriorMedications {
		if strings.EqualFold(strings.TrimSpace(med.Status), priorMedicationActive) {
			out = append(out, med)
		}
	}
	return out
}

func (p Patient) AllergenNames() []string {
	out := make([]string, 0, len(p.Allergies))
	for _, a := range p.Allergies {
		if name := strings.TrimSpace(a.Allergen); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// EvaluationRequest is everything a reviewer needs to judge one prescription.
type EvaluationRequest struct {
	Prescription Prescription `json:"prescription"`
	Patient      Patient      `json:"patient"`
}

// Validate checks the request before any provider is called. Every violation
// is reported in a single ErrInvalidInput.
func (r EvaluationRequest) Validate(now time.Time) error {
	verr := &ValidationError{}

	if len([]rune(strings.TrimSpace(r.Prescription.Diagnosis))) < minDiagnosisLength {
		verr.add("prescription.diagnosis must have at least %d characters", minDiagnosisLength)
	}
	if len(r.Prescription.Medications) == 0 {
		verr.add("prescription.medications must not be empty")
	}
	for i, med := range r.Prescription.Medications {
		if strings.TrimSpace(med.Name) == "" {
			verr.add("prescription.medications[%d].name is required", i)
		}
		if strings.TrimSpace(med.Route) == "" {
			verr.add("prescription.medications[%d].route is required", i)
		}
		if strings.TrimSpace(med.Dose) == "" {
			verr.add("prescription.medications[%d].dose is required", i)
		}
		if strings.TrimSpace(med.Unit) == "" {
			verr.add("prescription.medications[%d].unit is required", i)
		}
		if !med.SingleDose && strings.TrimSpace(med.Frequency) == "" {
			verr.add("prescription.medications[%d].frequency is required unless singleDose", i)
		}
	}

	if strings.TrimSpace(r.Patient.Name) == "" {
		verr.add("patient.name is required")
	}
	if strings.TrimSpace(r.Patient.BirthDate) != "" {
		if _, ok := parseBirthDate(r.Patient.BirthDate); !ok {
			verr.add("patient.birthDate must be YYYY-MM-DD")
		}
	}
	if age, ok := r.Patient.AgeAt(now); !ok {
		verr.add("patient.age or patient.birthDate is required")
	} else if age < 0 {
		verr.add("patient.age must not be negative")
	}
	if r.Patient.WeightKg <= 0 {
		verr.add("patient.weightKg must be positive")
	}

	if err := verr.orNil(); err != nil {
		return WrapError(ErrInvalidInput, "validate evaluation request", err)
	}
	return nil
}

func parseBirthDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
