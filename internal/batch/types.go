package batch

import (
	"github.com/researchflow/phi-sentinel/internal/phi"
)

// RiskLevel is a coarse ordinal classification summarizing the worst
// finding(s) in a snippet.
type RiskLevel string

const (
	RiskNone   RiskLevel = "NONE"
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Rank orders risk levels: HIGH > MEDIUM > LOW > NONE.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// SnippetInput is one independent unit of text to scan: a document, an OCR
// page, a transcript segment.
type SnippetInput struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SnippetScanResult is the per-snippet outcome.
type SnippetScanResult struct {
	SnippetID      string        `json:"snippet_id"`
	Source         string        `json:"source"`
	HasPhi         bool          `json:"has_phi"`
	FindingCount   int           `json:"finding_count"`
	RiskLevel      RiskLevel     `json:"risk_level"`
	Findings       []phi.Finding `json:"findings"`
	RedactedText   string        `json:"redacted_text,omitempty"`
	OriginalLength int           `json:"original_length"`
	Truncated      bool          `json:"truncated"`
}

// BatchScanResult aggregates the results of a batch scan.
type BatchScanResult struct {
	TotalSnippets        int                    `json:"total_snippets"`
	SnippetsWithPhi      int                    `json:"snippets_with_phi"`
	TotalFindings        int                    `json:"total_findings"`
	OverallRisk          RiskLevel              `json:"overall_risk"`
	RiskDistribution     map[RiskLevel]int      `json:"risk_distribution"`
	TypeDistribution     map[phi.EntityType]int `json:"type_distribution"`
	ProcessingDurationMs int64                  `json:"processing_duration_ms"`
	Snippets             []SnippetScanResult    `json:"snippets"`
}

// ScanOptions controls a snippet or batch scan.
type ScanOptions struct {
	// Tier selects the pattern subset; empty means OUTPUT_GUARD, the
	// comprehensive set appropriate for export auditing.
	Tier phi.Tier `json:"tier,omitempty"`
	// Redact includes redacted text in each snippet result.
	Redact bool `json:"redact,omitempty"`
	// UseEntities runs the contextual elevator against the NER
	// collaborator when one is configured.
	UseEntities bool `json:"use_entities,omitempty"`
}

func (o ScanOptions) tier() phi.Tier {
	if o.Tier == "" {
		return phi.TierOutputGuard
	}
	return o.Tier
}

// Config contains batch scanning configuration.
type Config struct {
	// Workers bounds scan parallelism across snippets; zero or negative
	// means GOMAXPROCS.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// ReportTopN is how many highest-risk snippets the rendered report
	// lists.
	ReportTopN int `yaml:"report_top_n" mapstructure:"report_top_n"`
}
