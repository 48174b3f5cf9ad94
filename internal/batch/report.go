package batch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

// RenderReport produces a Markdown summary of a batch scan: totals, the
// risk-level histogram, the entity-type histogram, and the top-N
// highest-risk snippets. Pure formatting over an existing result; it never
// rescans and never includes matched text, only counts and offsets.
func RenderReport(result BatchScanResult, topN int) string {
	if topN <= 0 {
		topN = 10
	}

	var b strings.Builder

	b.WriteString("# PHI Scan Report\n\n")
	fmt.Fprintf(&b, "- Snippets scanned: %d\n", result.TotalSnippets)
	fmt.Fprintf(&b, "- Snippets with PHI: %d\n", result.SnippetsWithPhi)
	fmt.Fprintf(&b, "- Total findings: %d\n", result.TotalFindings)
	fmt.Fprintf(&b, "- Overall risk: %s\n", result.OverallRisk)
	fmt.Fprintf(&b, "- Processing time: %d ms\n", result.ProcessingDurationMs)

	b.WriteString("\n## Risk distribution\n\n")
	for _, level := range []RiskLevel{RiskHigh, RiskMedium, RiskLow, RiskNone} {
		fmt.Fprintf(&b, "- %s: %d\n", level, result.RiskDistribution[level])
	}

	if len(result.TypeDistribution) > 0 {
		b.WriteString("\n## Findings by entity type\n\n")
		types := make([]phi.EntityType, 0, len(result.TypeDistribution))
		for entityType := range result.TypeDistribution {
			types = append(types, entityType)
		}
		// Count descending, then name, so the report is deterministic.
		sort.Slice(types, func(i, j int) bool {
			ci, cj := result.TypeDistribution[types[i]], result.TypeDistribution[types[j]]
			if ci != cj {
				return ci > cj
			}
			return types[i] < types[j]
		})
		for _, entityType := range types {
			fmt.Fprintf(&b, "- %s: %d\n", entityType, result.TypeDistribution[entityType])
		}
	}

	top := topSnippets(result.Snippets, topN)
	if len(top) > 0 {
		fmt.Fprintf(&b, "\n## Top %d snippets by risk\n\n", len(top))
		b.WriteString("| Snippet | Source | Risk | Findings | Truncated |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, snippet := range top {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %t |\n",
				snippet.SnippetID, snippet.Source, snippet.RiskLevel,
				snippet.FindingCount, snippet.Truncated)
		}
	}

	return b.String()
}

// topSnippets returns up to n snippets ordered by risk rank, then finding
// count, then id for stability.
func topSnippets(snippets []SnippetScanResult, n int) []SnippetScanResult {
	withPhi := make([]SnippetScanResult, 0, len(snippets))
	for _, s := range snippets {
		if s.HasPhi {
			withPhi = append(withPhi, s)
		}
	}
	sort.Slice(withPhi, func(i, j int) bool {
		if withPhi[i].RiskLevel.Rank() != withPhi[j].RiskLevel.Rank() {
			return withPhi[i].RiskLevel.Rank() > withPhi[j].RiskLevel.Rank()
		}
		if withPhi[i].FindingCount != withPhi[j].FindingCount {
			return withPhi[i].FindingCount > withPhi[j].FindingCount
		}
		return withPhi[i].SnippetID < withPhi[j].SnippetID
	})
	if len(withPhi) > n {
		withPhi = withPhi[:n]
	}
	return withPhi
}
