package phi

import (
	"sort"
	"strings"
)

// Placeholder returns the wire-visible redaction tag for an entity type.
// The format is stable: downstream audit tooling parses it.
func Placeholder(entityType EntityType) string {
	return "[REDACTED:" + string(entityType) + "]"
}

// Redact splices a typed placeholder over every finding span. Findings are
// processed in descending start-offset order so earlier replacements never
// invalidate the byte offsets of not-yet-processed findings. Findings that
// overlap an already-redacted span are skipped rather than spliced across a
// placeholder. An empty findings list returns the input unchanged.
func Redact(text string, findings []Finding) string {
	if len(findings) == 0 {
		return text
	}

	ordered := make([]Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartOffset > ordered[j].StartOffset
	})

	var b strings.Builder
	redacted := text
	lastStart := len(text)
	for _, f := range ordered {
		if f.StartOffset < 0 || f.EndOffset > len(text) || f.StartOffset >= f.EndOffset {
			continue
		}
		if f.EndOffset > lastStart {
			continue
		}

		b.Reset()
		b.Grow(len(redacted))
		b.WriteString(redacted[:f.StartOffset])
		b.WriteString(Placeholder(f.EntityType))
		b.WriteString(redacted[f.EndOffset:])
		redacted = b.String()
		lastStart = f.StartOffset
	}

	return redacted
}
