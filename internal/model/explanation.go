package model

import (
	"time"

	"github.com/google/uuid"
)

// RiskSeverity grades a risk factor.
type RiskSeverity string

const (
	RiskHigh   RiskSeverity = "HIGH"
	RiskMedium RiskSeverity = "MEDIUM"
	RiskLow    RiskSeverity = "LOW"
)

// RiskFactor is a single identified risk with its mitigation.
type RiskFactor struct {
	Type        string       `json:"type"`
	Severity    RiskSeverity `json:"severity"`
	Description string       `json:"description"`
	Mitigation  string       `json:"mitigation"`
}

// AgentAnalysis is the per-agent breakdown inside an explanation.
type AgentAnalysis struct {
	AgentID        string         `json:"agent_id"`
	Specialization Specialization `json:"specialization"`
	Decision       Decision       `json:"decision"`
	Confidence     float64        `json:"confidence"`
	Weight         float64        `json:"weight"`
	Influence      float64        `json:"influence"`
	Byzantine      bool           `json:"byzantine"`
}

// Explanation is the structured rationale derived from a completed
// coordination session.
type Explanation struct {
	SessionID          uuid.UUID       `json:"session_id"`
	GeneratedAt        time.Time       `json:"generated_at"`
	Summary            string          `json:"summary"`
	AgentAnalyses      []AgentAnalysis `json:"agent_analyses"`
	WeightedConfidence float64         `json:"weighted_confidence"`
	RiskFactors        []RiskFactor    `json:"risk_factors"`
	ReasoningSteps     []string        `json:"reasoning_steps"`
	Features           []float64       `json:"features"`
	AnomalyScore       float64         `json:"anomaly_score"`
	FinalDecision      Decision        `json:"final_decision"`
}

// DatasetRow is one sample in an analytics export.
type DatasetRow struct {
	Features     []float64 `json:"features"`
	Target       int       `json:"target"`
	Confidence   float64   `json:"confidence"`
	AnomalyScore float64   `json:"anomaly_score"`
}

// DatasetMeta describes an exported dataset.
type DatasetMeta struct {
	SampleCount int          `json:"sample_count"`
	Approved    int          `json:"approved"`
	Rejected    int          `json:"rejected"`
	GeneratedAt time.Time    `json:"generated_at"`
	Format      ExportFormat `json:"format"`
}

// ExportFormat selects the shape of an analytics export.
type ExportFormat string

const (
	// ExportStructured returns full rows with named fields.
	ExportStructured ExportFormat = "structured"
	// ExportFlat returns feature matrices suitable for tabular loading.
	ExportFlat ExportFormat = "flat"
)

// Dataset is the analytics export payload.
type Dataset struct {
	Meta DatasetMeta `json:"meta"`

	// Rows is populated for the structured format.
	Rows []DatasetRow `json:"rows,omitempty"`

	// Features and Targets are populated for the flat format; row i of
	// Features corresponds to Targets[i].
	FeatureMatrix [][]float64 `json:"feature_matrix,omitempty"`
	Targets       []int       `json:"targets,omitempty"`
}
