package phi

import (
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultMaxTextLength bounds how much of an input is scanned. Oversized
// inputs are truncated deterministically, never rejected.
const DefaultMaxTextLength = 1 << 20 // 1 MiB

// Scanner applies the pattern library to text. Scans are pure functions over
// their inputs plus the read-only library, so a single Scanner is safe for
// concurrent use without locking.
type Scanner struct {
	library       *Library
	maxTextLength int
	logger        *zap.Logger
}

// ScannerConfig contains scanner tuning knobs.
type ScannerConfig struct {
	// MaxTextLength is the scan size cap in bytes; zero means the default.
	MaxTextLength int `yaml:"max_text_length" mapstructure:"max_text_length"`
}

// NewScanner creates a scanner bound to a validated library.
func NewScanner(library *Library, cfg ScannerConfig, logger *zap.Logger) *Scanner {
	maxLen := cfg.MaxTextLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return &Scanner{
		library:       library,
		maxTextLength: maxLen,
		logger:        logger,
	}
}

// Library returns the scanner's pattern library.
func (s *Scanner) Library() *Library {
	return s.library
}

// MaxTextLength returns the scan size cap in bytes.
func (s *Scanner) MaxTextLength() int {
	return s.maxTextLength
}

// Scan finds all non-overlapping matches of every pattern in the requested
// tier. Findings are sorted ascending by start offset; ties keep pattern
// evaluation order. Empty text yields an empty result, never an error.
func (s *Scanner) Scan(text string, tier Tier) ScanResult {
	text, truncated := s.truncate(text)
	result := ScanResult{
		Findings:      []Finding{},
		Truncated:     truncated,
		ScannedLength: len(text),
	}
	if text == "" {
		return result
	}

	for _, def := range s.library.RulesForTier(tier) {
		spans := def.Rule.FindAllStringIndex(text, -1)
		for _, span := range spans {
			matched := text[span[0]:span[1]]
			result.Findings = append(result.Findings, Finding{
				PatternID:   def.ID,
				EntityType:  def.EntityType,
				MatchedText: matched,
				StartOffset: span[0],
				EndOffset:   span[1],
				Confidence:  Score(def.BaseConfidence, matched),
				Severity:    def.Severity,
			})
		}
	}

	// Stable sort: equal offsets retain the append order above, which is
	// pattern evaluation order.
	sort.SliceStable(result.Findings, func(i, j int) bool {
		return result.Findings[i].StartOffset < result.Findings[j].StartOffset
	})

	return result
}

// HasPhi reports whether any pattern in the tier matches, short-circuiting
// on the first hit. It never materializes findings, which keeps it cheap
// enough for per-log-line gating.
func (s *Scanner) HasPhi(text string, tier Tier) bool {
	text, _ = s.truncate(text)
	if text == "" {
		return false
	}
	for _, def := range s.library.RulesForTier(tier) {
		if def.Rule.MatchString(text) {
			return true
		}
	}
	return false
}

// RedactText scans and redacts in one step, returning the redacted text
// alongside the scan result that produced it.
// When the input was truncated, only the scanned prefix is returned: the
// unscanned tail was never checked and must not leak through a redaction
// call. The Truncated flag on the result makes the cut observable.
func (s *Scanner) RedactText(text string, tier Tier) (string, ScanResult) {
	result := s.Scan(text, tier)
	if result.Truncated {
		text = text[:result.ScannedLength]
	}
	if len(result.Findings) == 0 {
		return text, result
	}
	return Redact(text, result.Findings), result
}

// truncate caps text at the configured maximum, backing up to a rune
// boundary so the scanned prefix stays valid UTF-8.
func (s *Scanner) truncate(text string) (string, bool) {
	if len(text) <= s.maxTextLength {
		return text, false
	}

	cut := s.maxTextLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	s.logger.Debug("Input truncated before scan",
		zap.Int("original_length", len(text)),
		zap.Int("scanned_length", cut),
	)
	return text[:cut], true
}
