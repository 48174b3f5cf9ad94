package elevate

import (
	"testing"

	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

func mrnFinding(start, end int) phi.Finding {
	return phi.Finding{
		PatternID:   "mrn-labeled",
		EntityType:  phi.EntityMRN,
		MatchedText: "MRN: 4412876",
		StartOffset: start,
		EndOffset:   end,
		Confidence:  0.9,
		Severity:    phi.SeverityHigh,
	}
}

func TestElevate(t *testing.T) {
	elevator := NewElevator(nil, zap.NewNop())

	t.Run("NoEntitiesIsNoOp", func(t *testing.T) {
		findings := []phi.Finding{mrnFinding(0, 12)}
		got := elevator.Elevate(findings, nil)
		if len(got) != 1 {
			t.Fatalf("Findings = %d, want 1", len(got))
		}
		if got[0].Severity != phi.SeverityHigh {
			t.Errorf("Severity changed without entities: %q", got[0].Severity)
		}
		if got[0].Context != "" {
			t.Errorf("Context set without entities: %q", got[0].Context)
		}
	})

	t.Run("MRNNearDiseaseBecomesCritical", func(t *testing.T) {
		findings := []phi.Finding{mrnFinding(0, 12)}
		entities := []MedicalEntity{{
			Text:        "metastatic melanoma",
			Label:       LabelDisease,
			StartOffset: 62, // 50 bytes past the finding
			EndOffset:   81,
			Confidence:  0.95,
		}}

		got := elevator.Elevate(findings, entities)
		if got[0].Severity != phi.SeverityCritical {
			t.Errorf("Severity = %q, want CRITICAL", got[0].Severity)
		}
		if got[0].Context == "" {
			t.Error("Escalated finding carries no context note")
		}
	})

	t.Run("MRNOutsideWindowStaysHigh", func(t *testing.T) {
		findings := []phi.Finding{mrnFinding(0, 12)}
		entities := []MedicalEntity{{
			Text:        "melanoma",
			Label:       LabelDisease,
			StartOffset: 200,
			EndOffset:   208,
		}}

		got := elevator.Elevate(findings, entities)
		if got[0].Severity != phi.SeverityHigh {
			t.Errorf("Severity = %q, want HIGH", got[0].Severity)
		}
	})

	t.Run("SeverityNeverLowered", func(t *testing.T) {
		findings := []phi.Finding{{
			PatternID:   "lab-specimen-id",
			EntityType:  phi.EntityLabID,
			StartOffset: 0,
			EndOffset:   10,
			Severity:    phi.SeverityCritical,
		}}
		entities := []MedicalEntity{{
			Text:        "fever",
			Label:       LabelSymptom,
			StartOffset: 20,
			EndOffset:   25,
		}}

		got := elevator.Elevate(findings, entities)
		if got[0].Severity != phi.SeverityCritical {
			t.Errorf("Severity lowered to %q", got[0].Severity)
		}
	})

	t.Run("RxNumberNearDrugBecomesHigh", func(t *testing.T) {
		findings := []phi.Finding{{
			PatternID:   "rx-number",
			EntityType:  phi.EntityRxNumber,
			StartOffset: 0,
			EndOffset:   12,
			Severity:    phi.SeverityMedium,
		}}
		entities := []MedicalEntity{{
			Text:        "methotrexate",
			Label:       LabelDrug,
			StartOffset: 40,
			EndOffset:   52,
		}}

		got := elevator.Elevate(findings, entities)
		if got[0].Severity != phi.SeverityHigh {
			t.Errorf("Severity = %q, want HIGH", got[0].Severity)
		}
	})

	t.Run("LabIDNearSymptomBecomesMedium", func(t *testing.T) {
		findings := []phi.Finding{{
			PatternID:   "lab-specimen-id",
			EntityType:  phi.EntityLabID,
			StartOffset: 0,
			EndOffset:   14,
			Severity:    phi.SeverityLow,
		}}
		entities := []MedicalEntity{{
			Text:        "night sweats",
			Label:       LabelSymptom,
			StartOffset: 100,
			EndOffset:   112,
		}}

		got := elevator.Elevate(findings, entities)
		if got[0].Severity != phi.SeverityMedium {
			t.Errorf("Severity = %q, want MEDIUM", got[0].Severity)
		}
	})

	t.Run("InputSliceNotMutated", func(t *testing.T) {
		findings := []phi.Finding{mrnFinding(0, 12)}
		entities := []MedicalEntity{{
			Text:        "melanoma",
			Label:       LabelDisease,
			StartOffset: 20,
			EndOffset:   28,
		}}

		elevator.Elevate(findings, entities)
		if findings[0].Severity != phi.SeverityHigh {
			t.Errorf("Input finding mutated: %q", findings[0].Severity)
		}
	})
}

func TestPersonFindings(t *testing.T) {
	elevator := NewElevator(nil, zap.NewNop())

	t.Run("PersonNearDiseaseSynthesizesNameFinding", func(t *testing.T) {
		entities := []MedicalEntity{
			{Text: "Jane Doe", Label: LabelPerson, StartOffset: 0, EndOffset: 8, Confidence: 0.88},
			{Text: "lupus", Label: LabelDisease, StartOffset: 30, EndOffset: 35, Confidence: 0.9},
		}

		got := elevator.Elevate(nil, entities)
		if len(got) != 1 {
			t.Fatalf("Findings = %d, want 1 synthesized name", len(got))
		}
		f := got[0]
		if f.PatternID != PersonContextPatternID {
			t.Errorf("PatternID = %q", f.PatternID)
		}
		if f.EntityType != phi.EntityName {
			t.Errorf("EntityType = %q", f.EntityType)
		}
		if f.Severity != phi.SeverityCritical {
			t.Errorf("Severity = %q, want CRITICAL", f.Severity)
		}
		if f.Confidence != 0.88 {
			t.Errorf("Confidence = %v, want the entity's 0.88", f.Confidence)
		}
	})

	t.Run("PersonWithoutMedicalContextIsIgnored", func(t *testing.T) {
		entities := []MedicalEntity{
			{Text: "Jane Doe", Label: LabelPerson, StartOffset: 0, EndOffset: 8},
		}
		got := elevator.Elevate(nil, entities)
		if len(got) != 0 {
			t.Errorf("Bare person produced findings: %+v", got)
		}
	})

	t.Run("PersonBeyondWindowIsIgnored", func(t *testing.T) {
		entities := []MedicalEntity{
			{Text: "Jane Doe", Label: LabelPerson, StartOffset: 0, EndOffset: 8},
			{Text: "lupus", Label: LabelDisease, StartOffset: 500, EndOffset: 505},
		}
		got := elevator.Elevate(nil, entities)
		if len(got) != 0 {
			t.Errorf("Distant person produced findings: %+v", got)
		}
	})

	t.Run("OverlapWithExistingFindingEscalatesInPlace", func(t *testing.T) {
		findings := []phi.Finding{{
			PatternID:   "name-labeled",
			EntityType:  phi.EntityName,
			StartOffset: 0,
			EndOffset:   8,
			Severity:    phi.SeverityMedium,
		}}
		entities := []MedicalEntity{
			{Text: "Jane Doe", Label: LabelPerson, StartOffset: 0, EndOffset: 8},
			{Text: "lupus", Label: LabelDisease, StartOffset: 30, EndOffset: 35},
		}

		got := elevator.Elevate(findings, entities)
		if len(got) != 1 {
			t.Fatalf("Findings = %d, want 1 (no duplicate for overlapped span)", len(got))
		}
		if got[0].PatternID != "name-labeled" {
			t.Errorf("PatternID = %q, want the matcher's finding kept", got[0].PatternID)
		}
		if got[0].Severity != phi.SeverityCritical {
			t.Errorf("Severity = %q, want CRITICAL for a patient name", got[0].Severity)
		}
		if got[0].Context == "" {
			t.Error("Escalated finding carries no context note")
		}
	})

	t.Run("ResultSortedByStartOffset", func(t *testing.T) {
		findings := []phi.Finding{{
			PatternID:   "mrn-labeled",
			EntityType:  phi.EntityMRN,
			StartOffset: 50,
			EndOffset:   62,
			Severity:    phi.SeverityHigh,
		}}
		entities := []MedicalEntity{
			{Text: "Jane Doe", Label: LabelPerson, StartOffset: 0, EndOffset: 8},
			{Text: "lupus", Label: LabelDisease, StartOffset: 30, EndOffset: 35},
		}

		got := elevator.Elevate(findings, entities)
		if len(got) != 2 {
			t.Fatalf("Findings = %d, want 2", len(got))
		}
		if got[0].StartOffset > got[1].StartOffset {
			t.Errorf("Findings not sorted: %d then %d", got[0].StartOffset, got[1].StartOffset)
		}
	})
}

func TestSpanDistance(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		want           int
	}{
		{"EntityAfterFinding", 0, 10, 15, 20, 5},
		{"EntityBeforeFinding", 15, 20, 0, 10, 5},
		{"Adjacent", 0, 10, 10, 12, 0},
		{"Overlapping", 0, 10, 5, 15, 0},
		{"Contained", 0, 20, 5, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spanDistance(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
				t.Errorf("spanDistance = %d, want %d", got, tt.want)
			}
		})
	}
}
