package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// FileFormat identifies a snippet dataset file format.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
	FormatUnknown FileFormat = "unknown"
)

// DetectFileFormat detects the dataset format from the file extension.
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json") || strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// snippetRecord is the on-disk shape of one dataset row.
type snippetRecord struct {
	ID     string `csv:"id" parquet:"id" json:"id"`
	Source string `csv:"source" parquet:"source" json:"source"`
	Text   string `csv:"text" parquet:"text" json:"text"`
}

// ReadSnippets loads a snippet dataset file (CSV, Parquet, or JSON lines)
// into scan inputs. Rows with empty text are skipped; rows without an ID
// get a positional one.
func ReadSnippets(filePath string, logger *zap.Logger) ([]SnippetInput, error) {
	format := DetectFileFormat(filePath)
	logger.Info("Reading snippet dataset",
		zap.String("file", filePath),
		zap.String("format", string(format)))

	var records []snippetRecord
	var err error

	switch format {
	case FormatCSV:
		records, err = readCSV(filePath, logger)
	case FormatParquet:
		records, err = readParquet(filePath, logger)
	case FormatJSON:
		records, err = readJSON(filePath, logger)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filePath)
	}
	if err != nil {
		return nil, err
	}

	snippets := make([]SnippetInput, 0, len(records))
	for i, rec := range records {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}
		id := rec.ID
		if id == "" {
			id = fmt.Sprintf("row-%d", i)
		}
		snippets = append(snippets, SnippetInput{
			ID:     id,
			Text:   text,
			Source: rec.Source,
		})
	}

	logger.Info("Snippet dataset loaded",
		zap.Int("rows", len(records)),
		zap.Int("snippets", len(snippets)))

	return snippets, nil
}

// readCSV reads id,source,text rows. Header order is taken from the header
// line so column order does not matter.
func readCSV(filePath string, logger *zap.Logger) ([]snippetRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	textCol, ok := columns["text"]
	if !ok {
		return nil, fmt.Errorf("CSV header has no text column: %v", header)
	}

	var records []snippetRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Failed to read CSV record", zap.Error(err))
			continue
		}
		if textCol >= len(row) {
			continue
		}

		rec := snippetRecord{Text: row[textCol]}
		if idCol, ok := columns["id"]; ok && idCol < len(row) {
			rec.ID = row[idCol]
		}
		if srcCol, ok := columns["source"]; ok && srcCol < len(row) {
			rec.Source = row[srcCol]
		}
		records = append(records, rec)
	}

	return records, nil
}

func readParquet(filePath string, logger *zap.Logger) ([]snippetRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []snippetRecord
	for {
		var rec snippetRecord
		err := reader.Read(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Failed to read Parquet record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// readJSON reads one JSON object per line.
func readJSON(filePath string, logger *zap.Logger) ([]snippetRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	var records []snippetRecord
	for {
		var rec snippetRecord
		err := decoder.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Failed to read JSON record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}
