package domain

import "testing"

func TestScoreDifferenceIsSymmetric(t *testing.T) {
	a := Analysis{OverallScore: 85}
	b := Analysis{OverallScore: 40}
	if ScoreDifference(a, b) != 45 || ScoreDifference(b, a) != 45 {
		t.Fatalf("expected symmetric difference of 45")
	}
	if ScoreDifference(a, a) != 0 {
		t.Fatalf("expected zero difference for equal scores")
	}
}

func TestTotalStatusConflict(t *testing.T) {
	cases := []struct {
		a, b AnalysisStatus
		want bool
	}{
		{AnalysisApproved, AnalysisRejected, true},
		{AnalysisRejected, AnalysisApproved, true},
		{AnalysisApproved, AnalysisWarning, false},
		{AnalysisWarning, AnalysisRejected, false},
		{AnalysisRejected, AnalysisRejected, false},
	}
	for _, tc := range cases {
		if got := TotalStatusConflict(tc.a, tc.b); got != tc.want {
			t.Fatalf("TotalStatusConflict(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDiscrepanciesCategoryAddressesEachRecord(t *testing.T) {
	var d Discrepancies
	for _, category := range FindingCategories {
		target := d.Category(category)
		if target == nil {
			t.Fatalf("no discrepancy record for %s", category)
		}
		target.Conflict = true
	}
	if !d.Allergies.Conflict || !d.Interactions.Conflict || !d.Dosage.Conflict || !d.Contraindications.Conflict {
		t.Fatalf("expected every category record to be addressable, got %+v", d)
	}
}
