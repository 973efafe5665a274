package consensus

import "github.com/veridex-labs/veridex/internal/model"

// Threshold is the consensus ratio required for approval. Fixed by design;
// changing it would change the meaning of every recorded session.
const Threshold = 2.0 / 3.0

// Aggregate computes a consensus result over a set of evaluations.
// An empty set yields ratio 0 and a REJECTED recommendation.
func Aggregate(evals []model.Evaluation) model.ConsensusResult {
	r := model.ConsensusResult{Total: len(evals), Recommended: model.DecisionRejected}
	if len(evals) == 0 {
		return r
	}

	var confSum, secSum float64
	for _, e := range evals {
		if e.Decision == model.DecisionApproved {
			r.Approvals++
		} else {
			r.Rejections++
		}
		confSum += e.Confidence
		secSum += e.SecurityScore
	}

	r.Ratio = float64(r.Approvals) / float64(r.Total)
	r.Achieved = r.Ratio >= Threshold
	r.AvgConfidence = confSum / float64(r.Total)
	r.AvgSecurity = secSum / float64(r.Total)
	if r.Achieved {
		r.Recommended = model.DecisionApproved
	}
	return r
}

// honestSubset returns the non-Byzantine evaluations and the ids of the
// agents whose evaluations were flagged.
func honestSubset(evals []model.Evaluation) (honest []model.Evaluation, flagged []string) {
	for _, e := range evals {
		if e.Byzantine {
			flagged = append(flagged, e.AgentID)
			continue
		}
		honest = append(honest, e)
	}
	return honest, flagged
}
