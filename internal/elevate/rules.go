package elevate

import "github.com/researchflow/phi-sentinel/internal/phi"

// Proximity windows in bytes. Distance is the gap between the finding span
// and the entity span, symmetric in either direction; overlapping spans have
// distance zero. No sentence segmentation happens at this layer.
const (
	mrnDiseaseWindow  = 100
	personWindow      = 200
	rxDrugWindow      = 100
	labSpecimenWindow = 150
)

// spanDistance returns the byte gap between [s1,e1) and [s2,e2).
func spanDistance(s1, e1, s2, e2 int) int {
	switch {
	case s2 >= e1:
		return s2 - e1
	case s1 >= e2:
		return s1 - e2
	default:
		return 0
	}
}

func nearestEntity(f phi.Finding, entities []MedicalEntity, labels ...EntityLabel) (MedicalEntity, int, bool) {
	best := -1
	var nearest MedicalEntity
	for _, entity := range entities {
		match := false
		for _, label := range labels {
			if entity.Label == label {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		d := spanDistance(f.StartOffset, f.EndOffset, entity.StartOffset, entity.EndOffset)
		if best < 0 || d < best {
			best = d
			nearest = entity
		}
	}
	return nearest, best, best >= 0
}

// mrnDiseaseRule escalates an MRN-shaped token to CRITICAL when a disease
// mention sits within the window; outside the window it stays at the
// matcher's HIGH.
type mrnDiseaseRule struct{}

func (mrnDiseaseRule) Name() string { return "mrn-near-disease" }

func (mrnDiseaseRule) Apply(f phi.Finding, entities []MedicalEntity) *Escalation {
	if f.EntityType != phi.EntityMRN {
		return nil
	}
	if entity, d, ok := nearestEntity(f, entities, LabelDisease); ok && d <= mrnDiseaseWindow {
		return &Escalation{
			Severity: phi.SeverityCritical,
			Context:  "near disease mention: " + entity.Text,
		}
	}
	return nil
}

// rxDrugRule flags a prescription-number-shaped token near a drug mention.
type rxDrugRule struct{}

func (rxDrugRule) Name() string { return "rx-near-drug" }

func (rxDrugRule) Apply(f phi.Finding, entities []MedicalEntity) *Escalation {
	if f.EntityType != phi.EntityRxNumber {
		return nil
	}
	if entity, d, ok := nearestEntity(f, entities, LabelDrug); ok && d <= rxDrugWindow {
		return &Escalation{
			Severity: phi.SeverityHigh,
			Context:  "near drug mention: " + entity.Text,
		}
	}
	return nil
}

// labSpecimenRule flags a lab or specimen identifier near a disease or
// symptom mention.
type labSpecimenRule struct{}

func (labSpecimenRule) Name() string { return "lab-near-clinical" }

func (labSpecimenRule) Apply(f phi.Finding, entities []MedicalEntity) *Escalation {
	if f.EntityType != phi.EntityLabID {
		return nil
	}
	if entity, d, ok := nearestEntity(f, entities, LabelDisease, LabelSymptom); ok && d <= labSpecimenWindow {
		return &Escalation{
			Severity: phi.SeverityMedium,
			Context:  "near clinical mention: " + entity.Text,
		}
	}
	return nil
}

// DefaultRules returns the built-in escalation rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		mrnDiseaseRule{},
		rxDrugRule{},
		labSpecimenRule{},
	}
}
