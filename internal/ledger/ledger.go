// Package ledger persists finalized coordination sessions as an append-only,
// tamper-evident audit trail. Three drivers share one Store contract:
// in-memory (default), SQLite, and Postgres.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veridex-labs/veridex/internal/integrity"
	"github.com/veridex-labs/veridex/internal/model"
)

// ErrNotFound is returned for lookups of unrecorded session ids.
var ErrNotFound = fmt.Errorf("ledger: record not found")

// Record is the flattened ledger projection of a coordination session.
type Record struct {
	SessionID         uuid.UUID `json:"session_id"`
	IdentityID        string    `json:"identity_id"`
	AssetType         string    `json:"asset_type"`
	FinalDecision     string    `json:"final_decision"`
	ConsensusRatio    float64   `json:"consensus_ratio"`
	ByzantineDetected int       `json:"byzantine_detected"`
	FaultTolerant     bool      `json:"fault_tolerant"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
	Failed            bool      `json:"failed"`
	CreatedAt         time.Time `json:"created_at"`

	// Payload is the full session serialized as JSON, kept for audit
	// reconstruction.
	Payload []byte `json:"payload,omitempty"`

	// ContentHash covers the canonical fields above; see integrity.SessionHash.
	ContentHash string `json:"content_hash"`
}

// NewRecord projects a finalized session into its ledger record.
func NewRecord(session *model.CoordinationSession) (Record, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return Record{}, fmt.Errorf("ledger: marshal session: %w", err)
	}
	return Record{
		SessionID:         session.ID,
		IdentityID:        session.IdentityID,
		AssetType:         string(session.AssetType),
		FinalDecision:     string(session.FinalDecision),
		ConsensusRatio:    session.Consensus.Ratio,
		ByzantineDetected: session.ByzantineDetected,
		FaultTolerant:     session.FaultTolerant,
		ProcessingTimeMs:  session.ProcessingTime,
		Failed:            session.Failed(),
		CreatedAt:         session.CreatedAt,
		Payload:           payload,
		ContentHash: integrity.SessionHash(
			session.ID,
			session.IdentityID,
			string(session.FinalDecision),
			session.Consensus.Ratio,
			session.ByzantineDetected,
			session.CreatedAt,
		),
	}, nil
}

// VerifyHash recomputes the record's content hash against its fields.
func (r Record) VerifyHash() bool {
	return integrity.Verify(r.ContentHash, r.SessionID, r.IdentityID,
		r.FinalDecision, r.ConsensusRatio, r.ByzantineDetected, r.CreatedAt)
}

// Store is the ledger persistence contract. Append is append-only; records
// are never updated or deleted.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Get(ctx context.Context, sessionID uuid.UUID) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Recorder adapts a Store to the coordinator's Recorder interface.
type Recorder struct {
	store Store
}

// NewRecorder wraps a store for use by the coordinator.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record projects and appends a finalized session.
func (r *Recorder) Record(ctx context.Context, session *model.CoordinationSession) error {
	rec, err := NewRecord(session)
	if err != nil {
		return err
	}
	return r.store.Append(ctx, rec)
}
