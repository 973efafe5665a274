package explain

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridex-labs/veridex/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func eval(spec model.Specialization, decision model.Decision, confidence float64, byzantine bool) model.Evaluation {
	return model.Evaluation{
		AgentID:        "agent-" + string(spec),
		Specialization: spec,
		Decision:       decision,
		Confidence:     confidence,
		SecurityScore:  0.8,
		Byzantine:      byzantine,
	}
}

func approvedSession(evals ...model.Evaluation) *model.CoordinationSession {
	s := &model.CoordinationSession{
		ID:                 uuid.New(),
		IdentityID:         "VEH-1",
		AssetType:          model.AssetVehicle,
		Evaluations:        evals,
		ParticipatingCount: len(evals),
		FinalDecision:      model.DecisionApproved,
	}
	var approvals int
	for _, e := range evals {
		if e.Decision == model.DecisionApproved {
			approvals++
		}
		if e.Byzantine {
			s.ByzantineDetected++
		}
	}
	if len(evals) > 0 {
		s.Consensus = model.ConsensusResult{
			Approvals:     approvals,
			Rejections:    len(evals) - approvals,
			Total:         len(evals),
			Ratio:         float64(approvals) / float64(len(evals)),
			AvgConfidence: 0.9,
		}
		s.Consensus.Achieved = s.Consensus.Ratio >= 2.0/3.0
	}
	return s
}

func TestWeightedConfidenceUsesSpecializationWeights(t *testing.T) {
	evals := []model.Evaluation{
		eval(model.SpecValidator, model.DecisionApproved, 0.9, false),
		eval(model.SpecConsensus, model.DecisionApproved, 0.8, false),
		eval(model.SpecSecurity, model.DecisionApproved, 0.7, false),
	}

	got := weightedConfidence(evals)
	want := (0.9*0.4 + 0.8*0.35 + 0.7*0.25) / (0.4 + 0.35 + 0.25)
	assert.InDelta(t, want, got, 1e-9)
}

func TestWeightedConfidenceExcludesByzantineEntirely(t *testing.T) {
	evals := []model.Evaluation{
		eval(model.SpecValidator, model.DecisionApproved, 0.9, false),
		eval(model.SpecSecurity, model.DecisionRejected, 0.2, true),
	}

	// The Byzantine evaluation contributes to neither numerator nor
	// denominator: the result equals the honest evaluation's confidence.
	assert.InDelta(t, 0.9, weightedConfidence(evals), 1e-9)
}

func TestWeightedConfidenceAllByzantineIsZero(t *testing.T) {
	evals := []model.Evaluation{
		eval(model.SpecValidator, model.DecisionRejected, 0.2, true),
		eval(model.SpecSecurity, model.DecisionRejected, 0.2, true),
	}
	assert.Zero(t, weightedConfidence(evals))
}

func TestWeightFallbackForUnknownSpecialization(t *testing.T) {
	assert.Equal(t, defaultWeight, weightFor(model.Specialization("auditor")))
}

func TestRiskFactorRulesAreIndependent(t *testing.T) {
	s := approvedSession(
		eval(model.SpecValidator, model.DecisionApproved, 0.9, false),
		eval(model.SpecConsensus, model.DecisionApproved, 0.9, false),
		eval(model.SpecSecurity, model.DecisionApproved, 0.9, false),
	)
	assert.Empty(t, riskFactors(s), "healthy session has no risk factors")

	s.ByzantineDetected = 1
	s.Consensus.Ratio = 0.5
	s.ProcessingTime = 6000
	factors := riskFactors(s)
	require.Len(t, factors, 3)
	assert.Equal(t, model.RiskHigh, factors[0].Severity)
	assert.Equal(t, model.RiskMedium, factors[1].Severity)
	assert.Equal(t, model.RiskLow, factors[2].Severity)
}

func TestAnomalyScoreMonotonicAndClamped(t *testing.T) {
	s := approvedSession(eval(model.SpecValidator, model.DecisionApproved, 0.9, false))

	prev := anomalyScore(s)
	assert.Zero(t, prev)

	// Add the four triggers one at a time; the score never decreases.
	s.ProcessingTime = 4000
	next := anomalyScore(s)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	s.Consensus.Ratio = 0.5
	next = anomalyScore(s)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	s.ByzantineDetected = 1
	next = anomalyScore(s)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	s.Consensus.AvgConfidence = 0.4
	next = anomalyScore(s)
	assert.GreaterOrEqual(t, next, prev)

	// Byzantine + low ratio + low confidence alone sum to 1.5 — clamp to 1.0.
	s.ProcessingTime = 0
	assert.Equal(t, 1.0, anomalyScore(s))
}

func TestReasoningStepsIncludeMitigationOnlyWhenByzantine(t *testing.T) {
	s := approvedSession(
		eval(model.SpecValidator, model.DecisionApproved, 0.9, false),
		eval(model.SpecConsensus, model.DecisionApproved, 0.9, false),
		eval(model.SpecSecurity, model.DecisionApproved, 0.9, false),
	)
	assert.Len(t, reasoningSteps(s), 3)

	s.ByzantineDetected = 1
	steps := reasoningSteps(s)
	require.Len(t, steps, 4)
	assert.Contains(t, steps[2], "Byzantine mitigation")
}

func TestExplainRetainsBoundedHistory(t *testing.T) {
	e := NewEngine(100, testLogger())

	var first *model.Explanation
	for i := 0; i < 101; i++ {
		s := approvedSession(eval(model.SpecValidator, model.DecisionApproved, 0.9, false))
		s.IdentityID = fmt.Sprintf("VEH-%d", i)
		exp := e.Explain(s)
		if i == 0 {
			first = exp
		}
	}

	_, err := e.Lookup(first.SessionID)
	assert.ErrorIs(t, err, ErrNotFound, "oldest explanation must be evicted")

	ds := e.Export(0, model.ExportStructured)
	assert.Equal(t, 100, ds.Meta.SampleCount)
}

func TestLookupUnknownSession(t *testing.T) {
	e := NewEngine(10, testLogger())
	_, err := e.Lookup(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportFormatsAndTargetDistribution(t *testing.T) {
	e := NewEngine(10, testLogger())

	approved := approvedSession(eval(model.SpecValidator, model.DecisionApproved, 0.9, false))
	rejected := approvedSession(eval(model.SpecValidator, model.DecisionRejected, 0.2, false))
	rejected.FinalDecision = model.DecisionRejected
	e.Explain(approved)
	e.Explain(rejected)

	structured := e.Export(0, model.ExportStructured)
	require.Len(t, structured.Rows, 2)
	assert.Equal(t, 1, structured.Meta.Approved)
	assert.Equal(t, 1, structured.Meta.Rejected)
	// Newest first: the rejected session was explained last.
	assert.Equal(t, 0, structured.Rows[0].Target)
	assert.Equal(t, 1, structured.Rows[1].Target)
	for _, row := range structured.Rows {
		assert.Len(t, row.Features, len(FeatureNames))
	}

	flat := e.Export(1, model.ExportFlat)
	require.Len(t, flat.FeatureMatrix, 1)
	require.Len(t, flat.Targets, 1)
	assert.Empty(t, flat.Rows)
}

func TestDeriveSummaryAndInfluence(t *testing.T) {
	s := approvedSession(
		eval(model.SpecValidator, model.DecisionApproved, 0.9, false),
		eval(model.SpecSecurity, model.DecisionRejected, 0.2, true),
	)
	s.ByzantineDetected = 1

	exp := Derive(s)
	assert.Contains(t, exp.Summary, "Byzantine")
	require.Len(t, exp.AgentAnalyses, 2)
	assert.Equal(t, 1.0, exp.AgentAnalyses[0].Influence, "sole honest agent holds all influence")
	assert.Zero(t, exp.AgentAnalyses[1].Influence, "Byzantine agent influences nothing")
}
