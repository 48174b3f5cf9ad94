package batch

import (
	"fmt"
	"os"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// FindingRow is the flattened Parquet schema for exported findings.
// Matched text is deliberately absent: the export feeds downstream audit
// tooling and must not itself carry PHI.
type FindingRow struct {
	SnippetID      string  `parquet:"snippet_id"`
	Source         string  `parquet:"source"`
	PatternID      string  `parquet:"pattern_id"`
	EntityType     string  `parquet:"entity_type"`
	Severity       string  `parquet:"severity"`
	Confidence     float64 `parquet:"confidence"`
	StartOffset    int32   `parquet:"start_offset"`
	EndOffset      int32   `parquet:"end_offset"`
	RiskLevel      string  `parquet:"risk_level"`
	LibraryVersion string  `parquet:"library_version"`
}

// ExportFindings writes every finding of a batch result to a Parquet file.
func ExportFindings(result BatchScanResult, libraryVersion, path string, logger *zap.Logger) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewWriter(file)

	rows := 0
	for _, snippet := range result.Snippets {
		for _, finding := range snippet.Findings {
			row := FindingRow{
				SnippetID:      snippet.SnippetID,
				Source:         snippet.Source,
				PatternID:      finding.PatternID,
				EntityType:     string(finding.EntityType),
				Severity:       string(finding.Severity),
				Confidence:     finding.Confidence,
				StartOffset:    int32(finding.StartOffset),
				EndOffset:      int32(finding.EndOffset),
				RiskLevel:      string(snippet.RiskLevel),
				LibraryVersion: libraryVersion,
			}
			if err := writer.Write(&row); err != nil {
				return fmt.Errorf("failed to write finding row: %w", err)
			}
			rows++
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize export file: %w", err)
	}

	logger.Info("Findings exported",
		zap.String("path", path),
		zap.Int("rows", rows),
		zap.String("library_version", libraryVersion),
	)
	return nil
}
