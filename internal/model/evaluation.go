package model

// Specialization identifies an agent's evaluation focus.
type Specialization string

const (
	SpecValidator Specialization = "validator"
	SpecConsensus Specialization = "consensus"
	SpecSecurity  Specialization = "security"
)

// Decision is the outcome of an evaluation or a coordination round.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Evaluation is a single agent's vote on a proposed identity.
// Immutable once produced; owned by the session that requested it.
type Evaluation struct {
	AgentID        string         `json:"agent_id"`
	Specialization Specialization `json:"specialization"`
	Decision       Decision       `json:"decision"`
	Confidence     float64        `json:"confidence"`
	SecurityScore  float64        `json:"security_score"`
	Reasoning      []string       `json:"reasoning"`
	Byzantine      bool           `json:"byzantine"`
}

// ConsensusResult is derived purely from a set of evaluations.
// Approvals + Rejections always equals Total.
type ConsensusResult struct {
	Approvals     int      `json:"approvals"`
	Rejections    int      `json:"rejections"`
	Total         int      `json:"total"`
	Ratio         float64  `json:"ratio"`
	Achieved      bool     `json:"achieved"`
	AvgConfidence float64  `json:"avg_confidence"`
	AvgSecurity   float64  `json:"avg_security"`
	Recommended   Decision `json:"recommended"`
}
