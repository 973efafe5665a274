package model

import (
	"time"

	"github.com/google/uuid"
)

// CoordinationSession is one complete round of agent dispatch, aggregation,
// and Byzantine correction for a single identity proposal. Immutable after
// creation; only the history container it lives in mutates.
type CoordinationSession struct {
	ID          uuid.UUID       `json:"id"`
	IdentityID  string          `json:"identity_id"`
	AssetType   AssetType       `json:"asset_type"`
	CreatedAt   time.Time       `json:"created_at"`
	Evaluations []Evaluation    `json:"evaluations"`
	Consensus   ConsensusResult `json:"consensus"`

	// Corrected is the consensus recomputed over non-Byzantine evaluations.
	// Nil when no Byzantine evaluation was observed.
	Corrected *ConsensusResult `json:"corrected,omitempty"`

	FinalDecision      Decision `json:"final_decision"`
	ByzantineAgents    []string `json:"byzantine_agents,omitempty"`
	ByzantineDetected  int      `json:"byzantine_detected"`
	FaultTolerant      bool     `json:"fault_tolerant"`
	ProcessingTime     int64    `json:"processing_time_ms"`
	ParticipatingCount int      `json:"participating_count"`

	// Error carries the dispatch failure description for failed sessions.
	// A failed session has zero evaluations and FinalDecision REJECTED.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the session represents a dispatch failure rather
// than a completed coordination round.
func (s *CoordinationSession) Failed() bool {
	return s.Error != ""
}

// Approved reports whether the Byzantine-corrected final decision approved
// the identity.
func (s *CoordinationSession) Approved() bool {
	return s.FinalDecision == DecisionApproved
}

// AttackResult describes an operator-triggered attack simulation.
type AttackResult struct {
	CompromisedAgentID string `json:"compromised_agent_id"`
	DurationSeconds    int    `json:"duration_seconds"`
}
