package phi

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestNewLibrary(t *testing.T) {
	logger := zap.NewNop()

	t.Run("DefaultTable", func(t *testing.T) {
		lib, err := NewLibrary(DefaultPatternTable(), logger)
		if err != nil {
			t.Fatalf("Failed to load default table: %v", err)
		}
		if lib.PatternCount() != len(DefaultPatternTable()) {
			t.Errorf("Pattern count = %d, want %d", lib.PatternCount(), len(DefaultPatternTable()))
		}
		if len(lib.Version()) != 12 {
			t.Errorf("Version %q is not a 12-char content hash", lib.Version())
		}
	})

	t.Run("HighConfidenceIsSubsetOfOutputGuard", func(t *testing.T) {
		lib, err := NewLibrary(DefaultPatternTable(), logger)
		if err != nil {
			t.Fatalf("Failed to load default table: %v", err)
		}

		guard := make(map[string]bool)
		for _, def := range lib.RulesForTier(TierOutputGuard) {
			guard[def.ID] = true
		}
		for _, def := range lib.RulesForTier(TierHighConfidence) {
			if !guard[def.ID] {
				t.Errorf("Pattern %q is in high_confidence but not in output_guard", def.ID)
			}
		}
	})

	t.Run("EmptyTable", func(t *testing.T) {
		_, err := NewLibrary(nil, logger)
		if !errors.Is(err, ErrEmptyTable) {
			t.Errorf("NewLibrary(nil) error = %v, want ErrEmptyTable", err)
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		specs := []PatternSpec{{
			ID:             "broken",
			EntityType:     EntitySSN,
			Tiers:          bothTiers,
			Expression:     `[unclosed`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}}
		if _, err := NewLibrary(specs, logger); err == nil {
			t.Error("Expected compile error for invalid expression")
		}
	})

	t.Run("EmptyMatchableExpression", func(t *testing.T) {
		specs := []PatternSpec{{
			ID:             "zero-width",
			EntityType:     EntitySSN,
			Tiers:          bothTiers,
			Expression:     `\d*`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}}
		_, err := NewLibrary(specs, logger)
		if !errors.Is(err, ErrEmptyMatch) {
			t.Errorf("Error = %v, want ErrEmptyMatch", err)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		spec := PatternSpec{
			ID:             "dup",
			EntityType:     EntitySSN,
			Tiers:          bothTiers,
			Expression:     `\b\d{3}-\d{2}-\d{4}\b`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}
		if _, err := NewLibrary([]PatternSpec{spec, spec}, logger); err == nil {
			t.Error("Expected error for duplicate pattern id")
		}
	})

	t.Run("BaseConfidenceOutOfRange", func(t *testing.T) {
		for _, confidence := range []float64{0, 1, 1.5, -0.1} {
			specs := []PatternSpec{{
				ID:             "conf",
				EntityType:     EntitySSN,
				Tiers:          bothTiers,
				Expression:     `\b\d{3}-\d{2}-\d{4}\b`,
				BaseConfidence: confidence,
				Severity:       SeverityHigh,
			}}
			if _, err := NewLibrary(specs, logger); err == nil {
				t.Errorf("Expected error for base confidence %v", confidence)
			}
		}
	})

	t.Run("TierViolation", func(t *testing.T) {
		specs := []PatternSpec{{
			ID:             "high-only",
			EntityType:     EntitySSN,
			Tiers:          []Tier{TierHighConfidence},
			Expression:     `\b\d{3}-\d{2}-\d{4}\b`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}}
		_, err := NewLibrary(specs, logger)
		if !errors.Is(err, ErrTierViolation) {
			t.Errorf("Error = %v, want ErrTierViolation", err)
		}
	})

	t.Run("UnknownTier", func(t *testing.T) {
		specs := []PatternSpec{{
			ID:             "odd-tier",
			EntityType:     EntitySSN,
			Tiers:          []Tier{"ingress"},
			Expression:     `\b\d{3}-\d{2}-\d{4}\b`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}}
		if _, err := NewLibrary(specs, logger); err == nil {
			t.Error("Expected error for unknown tier")
		}
	})

	t.Run("PlaceholderCollision", func(t *testing.T) {
		specs := []PatternSpec{{
			ID:             "greedy",
			EntityType:     EntitySSN,
			Tiers:          bothTiers,
			Expression:     `\[REDACTED:[A-Z_]+\]`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}}
		_, err := NewLibrary(specs, logger)
		if !errors.Is(err, ErrPlaceholderCollision) {
			t.Errorf("Error = %v, want ErrPlaceholderCollision", err)
		}
	})
}

func TestLibraryReload(t *testing.T) {
	logger := zap.NewNop()

	lib, err := NewLibrary(DefaultPatternTable(), logger)
	if err != nil {
		t.Fatalf("Failed to load default table: %v", err)
	}
	originalVersion := lib.Version()
	originalCount := lib.PatternCount()

	t.Run("RejectedReloadKeepsOldTable", func(t *testing.T) {
		if err := lib.Reload(nil); err == nil {
			t.Fatal("Expected reload of empty table to fail")
		}
		if lib.Version() != originalVersion {
			t.Errorf("Version changed after rejected reload: %q", lib.Version())
		}
		if lib.PatternCount() != originalCount {
			t.Errorf("Pattern count changed after rejected reload: %d", lib.PatternCount())
		}
	})

	t.Run("ValidReloadSwapsTable", func(t *testing.T) {
		specs := []PatternSpec{{
			ID:             "ssn-only",
			EntityType:     EntitySSN,
			Tiers:          bothTiers,
			Expression:     `\b\d{3}-\d{2}-\d{4}\b`,
			BaseConfidence: 0.9,
			Severity:       SeverityHigh,
		}}
		if err := lib.Reload(specs); err != nil {
			t.Fatalf("Reload failed: %v", err)
		}
		if lib.PatternCount() != 1 {
			t.Errorf("Pattern count = %d, want 1", lib.PatternCount())
		}
		if lib.Version() == originalVersion {
			t.Error("Version did not change after reload")
		}
	})
}

func TestTableVersionStability(t *testing.T) {
	v1 := tableVersion(DefaultPatternTable())
	v2 := tableVersion(DefaultPatternTable())
	if v1 != v2 {
		t.Errorf("Version not stable: %q vs %q", v1, v2)
	}

	altered := DefaultPatternTable()
	altered[0].Expression = `\b\d{9}\b`
	if tableVersion(altered) == v1 {
		t.Error("Version did not change when an expression changed")
	}
}
