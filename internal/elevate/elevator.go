package elevate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

// PersonContextPatternID marks findings synthesized from a PERSON entity
// found near medical context, as opposed to findings from the pattern table.
const PersonContextPatternID = "ner-person-context"

// Elevator fuses matcher findings with NER entities to correct under- and
// over-confidence: a weak standalone signal co-occurring with a strong
// medical-context signal is escalated. With no entities it is a strict
// no-op, so losing the NER collaborator degrades to pattern-only detection
// without touching the core scan path.
type Elevator struct {
	rules  []Rule
	logger *zap.Logger
}

// NewElevator creates an elevator with the given rules; nil means the
// built-in rule set.
func NewElevator(rules []Rule, logger *zap.Logger) *Elevator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Elevator{rules: rules, logger: logger}
}

// Elevate applies every rule to every finding, merging escalations
// deterministically: rules run in fixed order, a finding only ever moves to
// a strictly higher severity, and the first context note wins. PERSON
// entities near medical context additionally synthesize patient-name
// findings. The returned list is sorted ascending by start offset.
func (e *Elevator) Elevate(findings []phi.Finding, entities []MedicalEntity) []phi.Finding {
	if len(entities) == 0 {
		return findings
	}

	elevated := make([]phi.Finding, len(findings))
	copy(elevated, findings)

	for i := range elevated {
		for _, rule := range e.rules {
			esc := rule.Apply(elevated[i], entities)
			if esc == nil {
				continue
			}
			if esc.Severity.Rank() > elevated[i].Severity.Rank() {
				elevated[i].Severity = esc.Severity
				e.logger.Debug("Finding escalated",
					zap.String("rule", rule.Name()),
					zap.String("entity_type", string(elevated[i].EntityType)),
					zap.String("severity", string(esc.Severity)),
				)
			}
			if elevated[i].Context == "" {
				elevated[i].Context = esc.Context
			}
		}
	}

	elevated = append(elevated, e.personFindings(elevated, entities)...)

	sort.SliceStable(elevated, func(i, j int) bool {
		return elevated[i].StartOffset < elevated[j].StartOffset
	})
	return elevated
}

// personFindings treats a PERSON entity within the window of a disease,
// drug, or symptom mention as a patient name. A bare name far from any
// medical context is left to the matcher's standalone NAME pattern. When
// the entity span overlaps a finding the matcher already produced, that
// finding is escalated to CRITICAL in place rather than duplicated.
func (e *Elevator) personFindings(existing []phi.Finding, entities []MedicalEntity) []phi.Finding {
	var extra []phi.Finding
	for _, entity := range entities {
		if entity.Label != LabelPerson {
			continue
		}

		asFinding := phi.Finding{StartOffset: entity.StartOffset, EndOffset: entity.EndOffset}
		context, d, ok := nearestEntity(asFinding, entities, LabelDisease, LabelDrug, LabelSymptom)
		if !ok || d > personWindow {
			continue
		}
		if escalateOverlapping(existing, entity, context) {
			continue
		}

		confidence := entity.Confidence
		if confidence <= 0 || confidence > 0.99 {
			confidence = 0.99
		}
		extra = append(extra, phi.Finding{
			PatternID:   PersonContextPatternID,
			EntityType:  phi.EntityName,
			MatchedText: entity.Text,
			StartOffset: entity.StartOffset,
			EndOffset:   entity.EndOffset,
			Confidence:  confidence,
			Severity:    phi.SeverityCritical,
			Context:     "person name near medical context: " + context.Text,
		})
	}
	return extra
}

// escalateOverlapping raises any finding overlapping the person entity's
// span to CRITICAL and reports whether an overlap was found.
func escalateOverlapping(findings []phi.Finding, entity MedicalEntity, context MedicalEntity) bool {
	overlapped := false
	for i := range findings {
		if entity.StartOffset >= findings[i].EndOffset || findings[i].StartOffset >= entity.EndOffset {
			continue
		}
		overlapped = true
		if phi.SeverityCritical.Rank() > findings[i].Severity.Rank() {
			findings[i].Severity = phi.SeverityCritical
		}
		if findings[i].Context == "" {
			findings[i].Context = "person name near medical context: " + context.Text
		}
	}
	return overlapped
}
