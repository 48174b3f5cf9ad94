package phi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pattern load failures are fatal: the process must not serve scans with an
// unvalidated library, because a silently broken rule set turns into missed
// PHI downstream.
var (
	ErrEmptyTable           = errors.New("pattern table is empty")
	ErrEmptyMatch           = errors.New("pattern can match the empty string")
	ErrPlaceholderCollision = errors.New("redaction placeholder matches a pattern")
	ErrTierViolation        = errors.New("high-confidence pattern missing from output guard tier")
)

// Library holds the canonical, versioned rule set and exposes tier-filtered
// views. It is loaded once and read-only thereafter; a new rule set replaces
// the whole table through an atomic swap so in-flight scans always see a
// single consistent version.
type Library struct {
	table  atomic.Pointer[patternTable]
	logger *zap.Logger
}

type patternTable struct {
	defs    []PatternDefinition
	byTier  map[Tier][]PatternDefinition
	version string
}

// NewLibrary compiles and validates the given specs into a Library. Any
// compile failure, empty-matchable expression, tier violation, or placeholder
// collision aborts the load.
func NewLibrary(specs []PatternSpec, logger *zap.Logger) (*Library, error) {
	table, err := buildTable(specs)
	if err != nil {
		return nil, err
	}

	lib := &Library{logger: logger}
	lib.table.Store(table)

	logger.Info("Pattern library loaded",
		zap.String("version", table.version),
		zap.Int("total_patterns", len(table.defs)),
		zap.Int("high_confidence_patterns", len(table.byTier[TierHighConfidence])),
	)

	return lib, nil
}

// Reload validates a replacement rule set and atomically swaps it in. On any
// validation error the previous table stays active.
func (l *Library) Reload(specs []PatternSpec) error {
	table, err := buildTable(specs)
	if err != nil {
		return fmt.Errorf("pattern reload rejected: %w", err)
	}

	l.table.Store(table)
	l.logger.Info("Pattern library reloaded",
		zap.String("version", table.version),
		zap.Int("total_patterns", len(table.defs)),
	)
	return nil
}

// RulesForTier returns the patterns belonging to the given tier, in fixed
// evaluation order. The returned slice must not be mutated.
func (l *Library) RulesForTier(tier Tier) []PatternDefinition {
	return l.table.Load().byTier[tier]
}

// Version identifies the active rule set for audit records and cache keys.
func (l *Library) Version() string {
	return l.table.Load().version
}

// PatternCount returns the total number of loaded patterns.
func (l *Library) PatternCount() int {
	return len(l.table.Load().defs)
}

func buildTable(specs []PatternSpec) (*patternTable, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyTable
	}

	table := &patternTable{
		byTier: map[Tier][]PatternDefinition{},
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("pattern with entity type %s has no id", spec.EntityType)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate pattern id %q", spec.ID)
		}
		seen[spec.ID] = true

		if len(spec.Tiers) == 0 {
			return nil, fmt.Errorf("pattern %q: %w", spec.ID, errors.New("pattern belongs to no tier"))
		}
		if spec.BaseConfidence <= 0 || spec.BaseConfidence >= 1 {
			return nil, fmt.Errorf("pattern %q: base confidence %.2f outside (0,1)", spec.ID, spec.BaseConfidence)
		}

		rule, err := regexp.Compile(spec.Expression)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec.ID, err)
		}

		// A zero-width match would loop the matcher and corrupt offsets, so
		// it is rejected here rather than guarded against at scan time.
		if rule.MatchString("") {
			return nil, fmt.Errorf("pattern %q: %w", spec.ID, ErrEmptyMatch)
		}

		def := PatternDefinition{
			ID:             spec.ID,
			EntityType:     spec.EntityType,
			Tiers:          spec.Tiers,
			Rule:           rule,
			HIPAACategory:  spec.HIPAACategory,
			Description:    spec.Description,
			BaseConfidence: spec.BaseConfidence,
			Severity:       spec.Severity,
		}

		inGuard := false
		inHigh := false
		for _, tier := range def.Tiers {
			table.byTier[tier] = append(table.byTier[tier], def)
			switch tier {
			case TierOutputGuard:
				inGuard = true
			case TierHighConfidence:
				inHigh = true
			default:
				return nil, fmt.Errorf("pattern %q: unknown tier %q", spec.ID, tier)
			}
		}
		if inHigh && !inGuard {
			return nil, fmt.Errorf("pattern %q: %w", spec.ID, ErrTierViolation)
		}

		table.defs = append(table.defs, def)
	}

	// Redacting must be idempotent: a placeholder that re-matches any rule
	// would make re-scans of already-redacted text report phantom PHI.
	for _, def := range table.defs {
		placeholder := Placeholder(def.EntityType)
		for _, other := range table.defs {
			if other.Rule.MatchString(placeholder) {
				return nil, fmt.Errorf("placeholder %s vs pattern %q: %w",
					placeholder, other.ID, ErrPlaceholderCollision)
			}
		}
	}

	table.version = tableVersion(specs)
	return table, nil
}

// tableVersion derives a stable content hash over the rule set so that cache
// keys and audit records can pin the exact detection behavior in effect.
func tableVersion(specs []PatternSpec) string {
	hasher := sha256.New()
	for _, spec := range specs {
		hasher.Write([]byte(spec.ID))
		hasher.Write([]byte{0})
		hasher.Write([]byte(spec.Expression))
		hasher.Write([]byte{0})
		for _, tier := range spec.Tiers {
			hasher.Write([]byte(tier))
		}
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:12]
}
