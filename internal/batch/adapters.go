package batch

import (
	"context"
	"fmt"
	"strconv"
)

// The adapters below map domain objects onto the generic SnippetInput shape
// and delegate to ScanBatch; they add no scanning behavior of their own.

// LiteratureItem is a literature-search result: title plus abstract.
type LiteratureItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// OCRPage is one page of OCR output from an ingested document.
type OCRPage struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// TranscriptSegment is one segment of an audio transcription.
type TranscriptSegment struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
}

// ScanLiterature scans title+abstract pairs.
func (a *Aggregator) ScanLiterature(ctx context.Context, items []LiteratureItem, opts ScanOptions) BatchScanResult {
	snippets := make([]SnippetInput, len(items))
	for i, item := range items {
		text := item.Title
		if item.Abstract != "" {
			text += "\n\n" + item.Abstract
		}
		snippets[i] = SnippetInput{
			ID:     item.ID,
			Text:   text,
			Source: "literature",
		}
	}
	return a.ScanBatch(ctx, snippets, opts)
}

// ScanOCRPages scans OCR page results.
func (a *Aggregator) ScanOCRPages(ctx context.Context, pages []OCRPage, opts ScanOptions) BatchScanResult {
	snippets := make([]SnippetInput, len(pages))
	for i, page := range pages {
		snippets[i] = SnippetInput{
			ID:     fmt.Sprintf("%s-p%d", page.DocumentID, page.PageNumber),
			Text:   page.Text,
			Source: "ocr",
			Metadata: map[string]string{
				"document_id": page.DocumentID,
				"page":        strconv.Itoa(page.PageNumber),
			},
		}
	}
	return a.ScanBatch(ctx, snippets, opts)
}

// ScanTranscript scans transcription segments.
func (a *Aggregator) ScanTranscript(ctx context.Context, segments []TranscriptSegment, opts ScanOptions) BatchScanResult {
	snippets := make([]SnippetInput, len(segments))
	for i, segment := range segments {
		snippets[i] = SnippetInput{
			ID:     fmt.Sprintf("%s-s%d", segment.SessionID, segment.Index),
			Text:   segment.Text,
			Source: "transcript",
			Metadata: map[string]string{
				"session_id": segment.SessionID,
				"speaker":    segment.Speaker,
			},
		}
	}
	return a.ScanBatch(ctx, snippets, opts)
}
