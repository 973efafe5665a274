package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_records (
	session_id         TEXT PRIMARY KEY,
	identity_id        TEXT NOT NULL,
	asset_type         TEXT NOT NULL,
	final_decision     TEXT NOT NULL,
	consensus_ratio    REAL NOT NULL,
	byzantine_detected INTEGER NOT NULL,
	fault_tolerant     INTEGER NOT NULL,
	processing_time_ms INTEGER NOT NULL,
	failed             INTEGER NOT NULL,
	created_at         TEXT NOT NULL,
	payload            BLOB,
	content_hash       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_created_at ON ledger_records (created_at DESC);
`

// SQLiteStore is the embedded-file ledger driver, suitable for single-node
// deployments. Uses the CGo-free modernc driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed bootstraps) a SQLite ledger at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	// The modernc driver serializes access through a single connection;
	// more would surface SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: bootstrap sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append stores a record.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_records (
			session_id, identity_id, asset_type, final_decision,
			consensus_ratio, byzantine_detected, fault_tolerant,
			processing_time_ms, failed, created_at, payload, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID.String(), rec.IdentityID, rec.AssetType, rec.FinalDecision,
		rec.ConsensusRatio, rec.ByzantineDetected, rec.FaultTolerant,
		rec.ProcessingTimeMs, rec.Failed, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.Payload, rec.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	return nil
}

// Get returns the record for a session id.
func (s *SQLiteStore) Get(ctx context.Context, sessionID uuid.UUID) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, identity_id, asset_type, final_decision,
		       consensus_ratio, byzantine_detected, fault_tolerant,
		       processing_time_ms, failed, created_at, payload, content_hash
		FROM ledger_records WHERE session_id = ?`, sessionID.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("ledger: get: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT session_id, identity_id, asset_type, final_decision,
		       consensus_ratio, byzantine_detected, fault_tolerant,
		       processing_time_ms, failed, created_at, payload, content_hash
		FROM ledger_records ORDER BY created_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: list scan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var sessionID, createdAt string
	if err := row.Scan(
		&sessionID, &rec.IdentityID, &rec.AssetType, &rec.FinalDecision,
		&rec.ConsensusRatio, &rec.ByzantineDetected, &rec.FaultTolerant,
		&rec.ProcessingTimeMs, &rec.Failed, &createdAt, &rec.Payload, &rec.ContentHash,
	); err != nil {
		return Record{}, err
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return Record{}, fmt.Errorf("parse session id: %w", err)
	}
	rec.SessionID = id
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	return rec, nil
}
