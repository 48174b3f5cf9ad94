package batch

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		file string
		want FileFormat
	}{
		{"data.csv", FormatCSV},
		{"data.parquet", FormatParquet},
		{"data.json", FormatJSON},
		{"data.jsonl", FormatJSON},
		{"data.txt", FormatUnknown},
	}
	for _, tt := range tests {
		if got := DetectFileFormat(tt.file); got != tt.want {
			t.Errorf("DetectFileFormat(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestReadSnippets(t *testing.T) {
	logger := zap.NewNop()

	t.Run("CSV", func(t *testing.T) {
		path := writeTempFile(t, "data.csv",
			"id,source,text\n"+
				"a1,ocr,first snippet\n"+
				"a2,transcript,second snippet\n"+
				"a3,ocr,\n")

		snippets, err := ReadSnippets(path, logger)
		if err != nil {
			t.Fatalf("ReadSnippets failed: %v", err)
		}
		if len(snippets) != 2 {
			t.Fatalf("Snippets = %d, want 2 (empty text dropped)", len(snippets))
		}
		if snippets[0].ID != "a1" || snippets[0].Source != "ocr" || snippets[0].Text != "first snippet" {
			t.Errorf("First snippet = %+v", snippets[0])
		}
	})

	t.Run("CSVColumnOrderIndependent", func(t *testing.T) {
		path := writeTempFile(t, "data.csv",
			"text,id\n"+
				"hello there,x1\n")

		snippets, err := ReadSnippets(path, logger)
		if err != nil {
			t.Fatalf("ReadSnippets failed: %v", err)
		}
		if snippets[0].ID != "x1" || snippets[0].Text != "hello there" {
			t.Errorf("Snippet = %+v", snippets[0])
		}
	})

	t.Run("CSVWithoutTextColumn", func(t *testing.T) {
		path := writeTempFile(t, "data.csv", "id,label\na,b\n")
		if _, err := ReadSnippets(path, logger); err == nil {
			t.Error("Expected error for CSV without text column")
		}
	})

	t.Run("JSONLines", func(t *testing.T) {
		path := writeTempFile(t, "data.jsonl",
			`{"id":"j1","source":"literature","text":"abstract one"}`+"\n"+
				`{"id":"j2","text":"abstract two"}`+"\n")

		snippets, err := ReadSnippets(path, logger)
		if err != nil {
			t.Fatalf("ReadSnippets failed: %v", err)
		}
		if len(snippets) != 2 {
			t.Fatalf("Snippets = %d, want 2", len(snippets))
		}
		if snippets[0].Source != "literature" {
			t.Errorf("Source = %q", snippets[0].Source)
		}
	})

	t.Run("MissingIDGetsPositionalOne", func(t *testing.T) {
		path := writeTempFile(t, "data.jsonl", `{"text":"no id here"}`+"\n")
		snippets, err := ReadSnippets(path, logger)
		if err != nil {
			t.Fatalf("ReadSnippets failed: %v", err)
		}
		if snippets[0].ID != "row-0" {
			t.Errorf("ID = %q, want row-0", snippets[0].ID)
		}
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		path := writeTempFile(t, "data.txt", "plain text")
		if _, err := ReadSnippets(path, logger); err == nil {
			t.Error("Expected error for unsupported format")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := ReadSnippets("/nonexistent/data.csv", logger); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}
