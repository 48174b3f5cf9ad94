// Package audit writes scan outcomes to the external audit ledger's
// Postgres table. The ledger itself (retention, review workflow) is another
// system; this is only its write boundary, and it records counts and risk
// levels, never matched text.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/batch"
)

// Store handles audit outcome writes over PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Outcome is one snippet's scan outcome as recorded in the ledger.
type Outcome struct {
	ID             int64     `db:"id" json:"id"`
	SnippetID      string    `db:"snippet_id" json:"snippet_id"`
	Source         string    `db:"source" json:"source"`
	RiskLevel      string    `db:"risk_level" json:"risk_level"`
	FindingCount   int       `db:"finding_count" json:"finding_count"`
	TypeCounts     string    `db:"type_counts" json:"type_counts"`
	Truncated      bool      `db:"truncated" json:"truncated"`
	LibraryVersion string    `db:"library_version" json:"library_version"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// NewStore connects to the ledger database.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Audit sink initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

// RecordBatch inserts one outcome row per snippet of a batch result.
func (s *Store) RecordBatch(ctx context.Context, result batch.BatchScanResult, libraryVersion string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO phi_scan_outcomes
			(snippet_id, source, risk_level, finding_count, type_counts, truncated, library_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, snippet := range result.Snippets {
		counts := map[string]int{}
		for _, f := range snippet.Findings {
			counts[string(f.EntityType)]++
		}
		typeCounts, err := json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("failed to encode type counts: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			snippet.SnippetID,
			snippet.Source,
			string(snippet.RiskLevel),
			snippet.FindingCount,
			string(typeCounts),
			snippet.Truncated,
			libraryVersion,
		); err != nil {
			return fmt.Errorf("failed to insert audit outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}

	s.logger.Info("Audit outcomes recorded",
		zap.Int("snippets", result.TotalSnippets),
		zap.String("overall_risk", string(result.OverallRisk)),
		zap.String("library_version", libraryVersion))

	return nil
}

// RecentOutcomes returns the most recent outcomes, newest first.
func (s *Store) RecentOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}

	var outcomes []Outcome
	query := `
		SELECT id, snippet_id, source, risk_level, finding_count,
		       type_counts, truncated, library_version, created_at
		FROM phi_scan_outcomes
		ORDER BY created_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &outcomes, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit outcomes: %w", err)
	}
	return outcomes, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks credentials in a database URL for logging
func maskDatabaseURL(url string) string {
	if idx := strings.Index(url, "@"); idx > 0 {
		if start := strings.Index(url, "://"); start > 0 {
			return url[:start+3] + "***" + url[idx:]
		}
	}
	return url
}
