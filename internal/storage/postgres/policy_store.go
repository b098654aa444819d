// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camilorv/aeropolicy/internal/policy"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PolicyStoreConfig controls the Postgres connection pool used for policy rows.
type PolicyStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PolicyStore writes extracted policy rows into Postgres. Rows are append
// only; each scrape of a source inserts a fresh row keyed by run.
type PolicyStore struct {
	pool  execCloser
	table string
}

// NewPolicyStore creates a Postgres-backed PolicyStore using the provided config.
func NewPolicyStore(ctx context.Context, cfg PolicyStoreConfig) (*PolicyStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "airline_policies"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PolicyStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewPolicyStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPolicyStoreWithPool(pool execCloser, table string) (*PolicyStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "airline_policies"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PolicyStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PolicyStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Persist inserts one extracted policy row.
func (s *PolicyStore) Persist(ctx context.Context, record policy.Extracted) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("policy store is not configured")
	}
	if record.AirlineCode == "" {
		return fmt.Errorf("airline code is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	airline_name,
	airline_code,
	allows_full_name_change,
	allows_name_correction,
	cost_name_change_domestic_cop,
	cost_name_change_intl_cop,
	cost_name_change_usd,
	allows_transfer_to_third_party,
	transfer_process_description,
	allows_cancellation,
	cancellation_cost_cop,
	refund_percentage,
	time_restrictions,
	fare_type_differences,
	max_change_deadline,
	terms_url,
	support_phone,
	support_email,
	required_documentation,
	notable_exceptions,
	source_url,
	scraped_at,
	content_hash,
	run_id,
	confidence_score,
	requires_manual_review,
	manual_review_notes
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27
)`, s.table)

	args := []any{
		record.AirlineName,
		record.AirlineCode,
		record.AllowsFullNameChange,
		record.AllowsNameCorrection,
		record.CostNameChangeDomesticCOP,
		record.CostNameChangeIntlCOP,
		record.CostNameChangeUSD,
		record.AllowsTransferToThirdParty,
		record.TransferProcess,
		record.AllowsCancellation,
		record.CancellationCostCOP,
		record.RefundPercentage,
		record.TimeRestrictions,
		record.FareTypeDifferences,
		record.MaxChangeDeadline,
		record.TermsURL,
		record.SupportPhone,
		record.SupportEmail,
		record.RequiredDocumentation,
		record.NotableExceptions,
		record.SourceURL,
		record.ScrapedAt,
		record.ContentHash,
		record.RunID,
		record.Confidence,
		record.ManualReview,
		record.ReviewNotes,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}
