package elevate

import "github.com/researchflow/phi-sentinel/internal/phi"

// EntityLabel classifies a medical entity produced by the external NER
// collaborator.
type EntityLabel string

const (
	LabelDisease EntityLabel = "DISEASE"
	LabelDrug    EntityLabel = "DRUG"
	LabelSymptom EntityLabel = "SYMPTOM"
	LabelPerson  EntityLabel = "PERSON"
	LabelGene    EntityLabel = "GENE"
	LabelProtein EntityLabel = "PROTEIN"
)

// MedicalEntity is a span identified by the NER collaborator. Offsets are
// byte offsets into the same text the matcher scanned, half-open. Entities
// live for a single scan call and are never persisted here.
type MedicalEntity struct {
	Text        string      `json:"text"`
	Label       EntityLabel `json:"label"`
	StartOffset int         `json:"start"`
	EndOffset   int         `json:"end"`
	Confidence  float64     `json:"confidence"`
}

// Escalation is a rule's verdict for a single finding: raise to Severity and
// annotate with Context. Rules are additive; the elevator merges escalations
// by taking the highest severity and the first context note, and never
// demotes a finding.
type Escalation struct {
	Severity phi.Severity
	Context  string
}

// Rule inspects one finding against the entity list and either escalates it
// or returns nil. Implementations must be pure so new rules stay addable
// without touching existing ones and each is independently testable.
type Rule interface {
	Name() string
	Apply(finding phi.Finding, entities []MedicalEntity) *Escalation
}
