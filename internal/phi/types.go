package phi

import "regexp"

// EntityType identifies the kind of PHI a pattern detects. Values follow the
// HIPAA safe-harbor identifier categories.
type EntityType string

const (
	EntityName       EntityType = "NAME"
	EntitySSN        EntityType = "SSN"
	EntityEmail      EntityType = "EMAIL"
	EntityPhone      EntityType = "PHONE"
	EntityMRN        EntityType = "MRN"
	EntityDOB        EntityType = "DOB"
	EntityAddress    EntityType = "ADDRESS"
	EntityZipCode    EntityType = "ZIP_CODE"
	EntityHealthPlan EntityType = "HEALTH_PLAN"
	EntityAccount    EntityType = "ACCOUNT"
	EntityLicense    EntityType = "LICENSE"
	EntityDeviceID   EntityType = "DEVICE_ID"
	EntityURL        EntityType = "URL"
	EntityIPAddress  EntityType = "IP_ADDRESS"
	EntityAgeOver89  EntityType = "AGE_OVER_89"
	EntityRxNumber   EntityType = "RX_NUMBER"
	EntityLabID      EntityType = "LAB_ID"
)

// Tier selects a subset of the pattern library for a given use case.
type Tier string

const (
	// TierHighConfidence is the precision-first subset used for ingress and
	// egress gating decisions, chosen for a low false-positive rate.
	TierHighConfidence Tier = "high_confidence"
	// TierOutputGuard is the full pattern set used for exhaustive
	// export-time scanning.
	TierOutputGuard Tier = "output_guard"
)

// Severity classifies how damaging a confirmed finding would be. The matcher
// assigns a default per pattern; the contextual elevator may raise it.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities so callers can compare and take the maximum.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// PatternDefinition is a single declarative detection rule. Definitions are
// immutable once loaded into a Library.
type PatternDefinition struct {
	// ID is the stable key for this pattern, used in audit records.
	ID string
	// EntityType is the HIPAA identifier category this pattern detects.
	EntityType EntityType
	// Tiers lists the tiers this pattern participates in. Must be non-empty.
	Tiers []Tier
	// Rule is the compiled matching expression.
	Rule *regexp.Regexp
	// HIPAACategory is the regulatory citation, informational only.
	HIPAACategory string
	// Description explains what the pattern matches, for reports.
	Description string
	// BaseConfidence is the starting confidence for a raw match, in [0,1).
	BaseConfidence float64
	// Severity is the default severity assigned to findings.
	Severity Severity
}

// Finding is a single detected PHI-like span.
//
// StartOffset and EndOffset are byte offsets into the UTF-8 input text,
// half-open [start,end). The matcher and redactor share this unit; mixing
// units would corrupt redaction on non-ASCII input.
type Finding struct {
	PatternID   string     `json:"pattern_id"`
	EntityType  EntityType `json:"entity_type"`
	MatchedText string     `json:"matched_text"`
	StartOffset int        `json:"start_offset"`
	EndOffset   int        `json:"end_offset"`
	Confidence  float64    `json:"confidence"`
	Severity    Severity   `json:"severity"`
	Context     string     `json:"context,omitempty"`
}

// ScanResult is the outcome of scanning a single text.
type ScanResult struct {
	Findings  []Finding `json:"findings"`
	Truncated bool      `json:"truncated"`
	// ScannedLength is the number of bytes actually scanned after any
	// truncation.
	ScannedLength int `json:"scanned_length"`
}
