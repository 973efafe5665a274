package veridex

import (
	"time"

	"github.com/google/uuid"
)

// Session is the public representation of a coordination round.
// It is a curated view of internal/model.CoordinationSession for use in
// extension interfaces. No internal package imports — safe to use from
// outside the module.
type Session struct {
	ID                uuid.UUID
	IdentityID        string
	AssetType         string
	FinalDecision     string
	ConsensusRatio    float64
	ByzantineDetected int
	ByzantineAgents   []string
	FaultTolerant     bool
	ProcessingTimeMs  int64
	CreatedAt         time.Time
	// Failed marks a dispatch failure rather than a completed round.
	Failed bool
	Error  string
}

// Approved reports whether the round approved the identity.
func (s Session) Approved() bool { return s.FinalDecision == "APPROVED" }

// Twin is the public view of a registered digital twin.
type Twin struct {
	TwinID      uuid.UUID
	SubjectID   string
	Type        string
	HealthScore float64
	AlertCount  int
	CreatedAt   time.Time
	LastUpdate  time.Time
}

// Explanation is the public view of a session explanation.
type Explanation struct {
	SessionID          uuid.UUID
	Summary            string
	WeightedConfidence float64
	AnomalyScore       float64
	RiskFactorCount    int
	FinalDecision      string
}
