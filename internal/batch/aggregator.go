package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/elevate"
	"github.com/researchflow/phi-sentinel/internal/ner"
	"github.com/researchflow/phi-sentinel/internal/phi"
)

// Types whose presence alone makes a snippet HIGH risk: one critical
// identifier outweighs any number of weak ones.
var highRiskTypes = map[phi.EntityType]bool{
	phi.EntitySSN:        true,
	phi.EntityMRN:        true,
	phi.EntityHealthPlan: true,
	phi.EntityAccount:    true,
}

// Types that make a snippet MEDIUM risk when matched with confidence above
// the medium threshold.
var mediumRiskTypes = map[phi.EntityType]bool{
	phi.EntityDOB:     true,
	phi.EntityName:    true,
	phi.EntityAddress: true,
	phi.EntityPhone:   true,
}

const mediumConfidenceThreshold = 0.7

// volumePromotionCount is the finding count at which sheer volume promotes
// a LOW snippet to MEDIUM.
const volumePromotionCount = 5

// Aggregator scans many independent snippets, assigns per-snippet risk,
// and aggregates a batch-level distribution. Snippets share no state, so
// batches are scanned in parallel with results identical to a sequential
// run.
type Aggregator struct {
	scanner  *phi.Scanner
	elevator *elevate.Elevator
	entities *ner.Client
	config   Config
	logger   *zap.Logger
}

// NewAggregator creates a batch aggregator. The NER client may be nil, in
// which case entity elevation is skipped entirely.
func NewAggregator(scanner *phi.Scanner, elevator *elevate.Elevator, entities *ner.Client, cfg Config, logger *zap.Logger) *Aggregator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ReportTopN <= 0 {
		cfg.ReportTopN = 10
	}
	return &Aggregator{
		scanner:  scanner,
		elevator: elevator,
		entities: entities,
		config:   cfg,
		logger:   logger,
	}
}

// ScanSnippet scans a single snippet and assigns its risk level.
func (a *Aggregator) ScanSnippet(ctx context.Context, input SnippetInput, opts ScanOptions) SnippetScanResult {
	scan := a.scanner.Scan(input.Text, opts.tier())
	findings := scan.Findings

	// Entities run even when the pattern scan came back clean: a person
	// name near medical context is synthesized by the elevator, not matched
	// by the table.
	if opts.UseEntities && a.entities != nil {
		entities := a.entities.Extract(ctx, input.Text)
		findings = a.elevator.Elevate(findings, entities)
	}

	result := SnippetScanResult{
		SnippetID:      input.ID,
		Source:         input.Source,
		HasPhi:         len(findings) > 0,
		FindingCount:   len(findings),
		RiskLevel:      assessRisk(findings),
		Findings:       findings,
		OriginalLength: len(input.Text),
		Truncated:      scan.Truncated,
	}

	if opts.Redact && len(findings) > 0 {
		text := input.Text
		if scan.Truncated {
			text = text[:scan.ScannedLength]
		}
		result.RedactedText = phi.Redact(text, findings)
	}

	return result
}

// ScanBatch scans snippets across a worker pool and aggregates the results.
// Output order matches input order regardless of scheduling.
func (a *Aggregator) ScanBatch(ctx context.Context, snippets []SnippetInput, opts ScanOptions) BatchScanResult {
	start := time.Now()

	results := make([]SnippetScanResult, len(snippets))

	workers := a.config.Workers
	if workers > len(snippets) {
		workers = len(snippets)
	}
	if workers > 1 {
		var wg sync.WaitGroup
		jobs := make(chan int)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					results[i] = a.ScanSnippet(ctx, snippets[i], opts)
				}
			}()
		}
		for i := range snippets {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	} else {
		for i := range snippets {
			results[i] = a.ScanSnippet(ctx, snippets[i], opts)
		}
	}

	batch := aggregate(results)
	batch.ProcessingDurationMs = time.Since(start).Milliseconds()

	a.logger.Info("Batch scan completed",
		zap.Int("total_snippets", batch.TotalSnippets),
		zap.Int("snippets_with_phi", batch.SnippetsWithPhi),
		zap.Int("total_findings", batch.TotalFindings),
		zap.String("overall_risk", string(batch.OverallRisk)),
		zap.Int64("duration_ms", batch.ProcessingDurationMs),
	)

	return batch
}

// assessRisk classifies a snippet from its findings. A critical identifier
// type forces HIGH immediately; a confident medium-risk type gives MEDIUM;
// anything else detected is LOW, promoted to MEDIUM when the sheer number
// of findings is itself a signal. Promotion never demotes.
func assessRisk(findings []phi.Finding) RiskLevel {
	if len(findings) == 0 {
		return RiskNone
	}

	for _, f := range findings {
		if highRiskTypes[f.EntityType] {
			return RiskHigh
		}
	}

	for _, f := range findings {
		if mediumRiskTypes[f.EntityType] && f.Confidence > mediumConfidenceThreshold {
			return RiskMedium
		}
	}

	if len(findings) >= volumePromotionCount {
		return RiskMedium
	}
	return RiskLow
}

func aggregate(results []SnippetScanResult) BatchScanResult {
	batch := BatchScanResult{
		TotalSnippets:    len(results),
		RiskDistribution: map[RiskLevel]int{},
		TypeDistribution: map[phi.EntityType]int{},
		OverallRisk:      RiskNone,
		Snippets:         results,
	}

	for _, r := range results {
		batch.RiskDistribution[r.RiskLevel]++
		if r.HasPhi {
			batch.SnippetsWithPhi++
		}
		batch.TotalFindings += r.FindingCount
		for _, f := range r.Findings {
			batch.TypeDistribution[f.EntityType]++
		}
		if r.RiskLevel.Rank() > batch.OverallRisk.Rank() {
			batch.OverallRisk = r.RiskLevel
		}
	}

	return batch
}
