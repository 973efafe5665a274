package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_records (
	session_id         UUID PRIMARY KEY,
	identity_id        TEXT NOT NULL,
	asset_type         TEXT NOT NULL,
	final_decision     TEXT NOT NULL,
	consensus_ratio    DOUBLE PRECISION NOT NULL,
	byzantine_detected INTEGER NOT NULL,
	fault_tolerant     BOOLEAN NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	failed             BOOLEAN NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	payload            JSONB,
	content_hash       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_created_at ON ledger_records (created_at DESC);
`

// PostgresStore is the shared-database ledger driver.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and bootstraps the ledger schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: bootstrap postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append stores a record.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_records (
			session_id, identity_id, asset_type, final_decision,
			consensus_ratio, byzantine_detected, fault_tolerant,
			processing_time_ms, failed, created_at, payload, content_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.SessionID, rec.IdentityID, rec.AssetType, rec.FinalDecision,
		rec.ConsensusRatio, rec.ByzantineDetected, rec.FaultTolerant,
		rec.ProcessingTimeMs, rec.Failed, rec.CreatedAt, rec.Payload, rec.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	return nil
}

// Get returns the record for a session id.
func (s *PostgresStore) Get(ctx context.Context, sessionID uuid.UUID) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, identity_id, asset_type, final_decision,
		       consensus_ratio, byzantine_detected, fault_tolerant,
		       processing_time_ms, failed, created_at, payload, content_hash
		FROM ledger_records WHERE session_id = $1`, sessionID)

	var rec Record
	err := row.Scan(
		&rec.SessionID, &rec.IdentityID, &rec.AssetType, &rec.FinalDecision,
		&rec.ConsensusRatio, &rec.ByzantineDetected, &rec.FaultTolerant,
		&rec.ProcessingTimeMs, &rec.Failed, &rec.CreatedAt, &rec.Payload, &rec.ContentHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("ledger: get: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT session_id, identity_id, asset_type, final_decision,
		       consensus_ratio, byzantine_detected, fault_tolerant,
		       processing_time_ms, failed, created_at, payload, content_hash
		FROM ledger_records ORDER BY created_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.SessionID, &rec.IdentityID, &rec.AssetType, &rec.FinalDecision,
			&rec.ConsensusRatio, &rec.ByzantineDetected, &rec.FaultTolerant,
			&rec.ProcessingTimeMs, &rec.Failed, &rec.CreatedAt, &rec.Payload, &rec.ContentHash,
		); err != nil {
			return nil, fmt.Errorf("ledger: list scan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
