// Package explain derives structured, auditable explanations from completed
// coordination sessions. Everything here is a pure function of the session
// plus a fixed specialization-weight table; the engine only adds bounded
// retention and lookup.
package explain

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridex-labs/veridex/internal/model"
)

// Specialization weights for the weighted confidence breakdown. Agents
// outside the table fall back to defaultWeight.
var specializationWeights = map[model.Specialization]float64{
	model.SpecValidator: 0.4,
	model.SpecConsensus: 0.35,
	model.SpecSecurity:  0.25,
}

const defaultWeight = 0.33

// Risk and anomaly thresholds. Sum-then-clamp on the anomaly side; this is
// an additive heuristic, not a calibrated probability.
const (
	slowProcessingMs     = 5000
	lowRatioThreshold    = 0.8
	anomalySlowMs        = 3000
	anomalyLowRatio      = 0.7
	anomalyLowConfidence = 0.5
)

// ErrNotFound is returned when no explanation exists for a session id.
var ErrNotFound = fmt.Errorf("explain: explanation not found")

// Engine derives and retains explanations. History is bounded; the oldest
// explanation is evicted first.
type Engine struct {
	capacity int
	logger   *slog.Logger

	mu      sync.Mutex
	history []*model.Explanation
	byID    map[uuid.UUID]*model.Explanation
}

// NewEngine creates an engine retaining up to capacity explanations
// (default 100).
func NewEngine(capacity int, logger *slog.Logger) *Engine {
	if capacity <= 0 {
		capacity = 100
	}
	return &Engine{
		capacity: capacity,
		logger:   logger,
		byID:     make(map[uuid.UUID]*model.Explanation),
	}
}

// Explain derives the explanation for a session and retains it.
func (e *Engine) Explain(session *model.CoordinationSession) *model.Explanation {
	exp := Derive(session)

	e.mu.Lock()
	e.history = append(e.history, exp)
	e.byID[exp.SessionID] = exp
	if len(e.history) > e.capacity {
		evicted := e.history[0]
		e.history = e.history[1:]
		delete(e.byID, evicted.SessionID)
	}
	e.mu.Unlock()

	e.logger.Debug("explanation derived",
		"session_id", exp.SessionID,
		"anomaly_score", exp.AnomalyScore,
		"risk_factors", len(exp.RiskFactors),
	)
	return exp
}

// Lookup returns the retained explanation for a session id.
func (e *Engine) Lookup(sessionID uuid.UUID) (*model.Explanation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.byID[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return exp, nil
}

// Derive computes an explanation without touching engine state.
func Derive(session *model.CoordinationSession) *model.Explanation {
	analyses := agentAnalyses(session.Evaluations)
	weighted := weightedConfidence(session.Evaluations)
	exp := &model.Explanation{
		SessionID:          session.ID,
		GeneratedAt:        time.Now().UTC(),
		AgentAnalyses:      analyses,
		WeightedConfidence: weighted,
		RiskFactors:        riskFactors(session),
		ReasoningSteps:     reasoningSteps(session),
		AnomalyScore:       anomalyScore(session),
		FinalDecision:      session.FinalDecision,
	}
	exp.Summary = summarize(session, weighted)
	exp.Features = featureVector(session, exp)
	return exp
}

// weightedConfidence computes Σ(confidence·weight)/Σ(weight) over the
// non-Byzantine evaluations. Byzantine evaluations are excluded entirely,
// not down-weighted; an all-Byzantine set yields 0 by convention.
func weightedConfidence(evals []model.Evaluation) float64 {
	var num, den float64
	for _, ev := range evals {
		if ev.Byzantine {
			continue
		}
		w := weightFor(ev.Specialization)
		num += ev.Confidence * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func weightFor(spec model.Specialization) float64 {
	if w, ok := specializationWeights[spec]; ok {
		return w
	}
	return defaultWeight
}

func agentAnalyses(evals []model.Evaluation) []model.AgentAnalysis {
	if len(evals) == 0 {
		return nil
	}
	var totalWeight float64
	for _, ev := range evals {
		if !ev.Byzantine {
			totalWeight += weightFor(ev.Specialization)
		}
	}
	analyses := make([]model.AgentAnalysis, 0, len(evals))
	for _, ev := range evals {
		a := model.AgentAnalysis{
			AgentID:        ev.AgentID,
			Specialization: ev.Specialization,
			Decision:       ev.Decision,
			Confidence:     ev.Confidence,
			Weight:         weightFor(ev.Specialization),
			Byzantine:      ev.Byzantine,
		}
		// Influence is the agent's share of the non-Byzantine weight mass;
		// excluded agents influence nothing.
		if !ev.Byzantine && totalWeight > 0 {
			a.Influence = a.Weight / totalWeight
		}
		analyses = append(analyses, a)
	}
	return analyses
}

// riskFactors applies three independent rules, each contributing at most one
// entry.
func riskFactors(session *model.CoordinationSession) []model.RiskFactor {
	var factors []model.RiskFactor
	if session.ByzantineDetected > 0 {
		factors = append(factors, model.RiskFactor{
			Type:        "byzantine_agents",
			Severity:    model.RiskHigh,
			Description: fmt.Sprintf("%d agent(s) returned adversarial evaluations", session.ByzantineDetected),
			Mitigation:  "Byzantine evaluations excluded; decision recomputed over honest agents",
		})
	}
	if session.Consensus.Ratio < lowRatioThreshold {
		factors = append(factors, model.RiskFactor{
			Type:        "weak_consensus",
			Severity:    model.RiskMedium,
			Description: fmt.Sprintf("consensus ratio %.2f below %.2f", session.Consensus.Ratio, lowRatioThreshold),
			Mitigation:  "manual review recommended before registration",
		})
	}
	if session.ProcessingTime > slowProcessingMs {
		factors = append(factors, model.RiskFactor{
			Type:        "slow_processing",
			Severity:    model.RiskLow,
			Description: fmt.Sprintf("coordination took %dms", session.ProcessingTime),
			Mitigation:  "check agent responsiveness",
		})
	}
	return factors
}

// reasoningSteps is a fixed narrative template; it deliberately does not
// echo agent-specific reasoning text.
func reasoningSteps(session *model.CoordinationSession) []string {
	steps := []string{
		fmt.Sprintf("Identity %q validated and dispatched to %d agent(s)",
			session.IdentityID, session.ParticipatingCount),
		fmt.Sprintf("Consensus ratio %.2f against threshold 0.67 (achieved=%t)",
			session.Consensus.Ratio, session.Consensus.Achieved),
	}
	if session.ByzantineDetected > 0 {
		steps = append(steps, fmt.Sprintf(
			"Byzantine mitigation: %d evaluation(s) excluded, decision recomputed over %d honest agent(s)",
			session.ByzantineDetected, session.ParticipatingCount-session.ByzantineDetected))
	}
	steps = append(steps, fmt.Sprintf("Final decision: %s", session.FinalDecision))
	return steps
}

// anomalyScore is additive over four independent triggers, clamped to 1.0.
func anomalyScore(session *model.CoordinationSession) float64 {
	var score float64
	if session.ProcessingTime > anomalySlowMs {
		score += 0.3
	}
	if session.Consensus.Ratio < anomalyLowRatio {
		score += 0.4
	}
	if session.ByzantineDetected > 0 {
		score += 0.5
	}
	if session.Consensus.AvgConfidence < anomalyLowConfidence {
		score += 0.6
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func summarize(session *model.CoordinationSession, weighted float64) string {
	verdict := "rejected"
	if session.Approved() {
		verdict = "approved"
	}
	s := fmt.Sprintf("Identity %q was %s with consensus ratio %.2f and weighted confidence %.2f.",
		session.IdentityID, verdict, session.Consensus.Ratio, weighted)
	if session.ByzantineDetected > 0 {
		s += fmt.Sprintf(" %d Byzantine evaluation(s) were detected and excluded.", session.ByzantineDetected)
	}
	return s
}

// FeatureNames documents the column order of the exported feature vector.
var FeatureNames = []string{
	"consensus_ratio",
	"avg_confidence",
	"avg_security",
	"weighted_confidence",
	"byzantine_detected",
	"participating_count",
	"processing_time_ms",
	"risk_factor_count",
}

func featureVector(session *model.CoordinationSession, exp *model.Explanation) []float64 {
	return []float64{
		session.Consensus.Ratio,
		session.Consensus.AvgConfidence,
		session.Consensus.AvgSecurity,
		exp.WeightedConfidence,
		float64(session.ByzantineDetected),
		float64(session.ParticipatingCount),
		float64(session.ProcessingTime),
		float64(len(exp.RiskFactors)),
	}
}
