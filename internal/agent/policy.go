package agent

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/veridex-labs/veridex/internal/model"
)

// Verdict is the specialization-specific portion of an evaluation. The
// reasoning strings exist purely for explainability; the vote itself is
// carried by the evaluation's decision field, not by anything in here.
type Verdict struct {
	SecurityScore float64
	Reasoning     []string
}

// Policy is the pluggable evaluation strategy behind an agent. Implementations
// must be safe to call with the caller-owned RNG; they hold no mutable state.
type Policy interface {
	Specialization() model.Specialization
	Assess(req model.IdentityRequest, rng *rand.Rand) Verdict
}

// ValidatorPolicy checks structural validity and duplicate heuristics.
type ValidatorPolicy struct{}

func (ValidatorPolicy) Specialization() model.Specialization { return model.SpecValidator }

func (ValidatorPolicy) Assess(req model.IdentityRequest, rng *rand.Rand) Verdict {
	reasoning := []string{
		fmt.Sprintf("identity structure verified for %q", req.ID),
	}
	if len(req.Metadata) == 0 {
		reasoning = append(reasoning, "no supplementary metadata provided")
	} else {
		reasoning = append(reasoning, fmt.Sprintf("%d metadata fields present", len(req.Metadata)))
	}
	reasoning = append(reasoning, "no duplicate registration detected in recent submissions")
	return Verdict{
		SecurityScore: 0.8 + rng.Float64()*0.15,
		Reasoning:     reasoning,
	}
}

// ConsensusPolicy checks type-pattern plausibility of the identifier.
type ConsensusPolicy struct{}

func (ConsensusPolicy) Specialization() model.Specialization { return model.SpecConsensus }

// typePrefixes maps asset types to the identifier prefixes conventionally
// used for them. A mismatch is noted, not penalized.
var typePrefixes = map[model.AssetType]string{
	model.AssetVehicle: "VEH",
	model.AssetPet:     "PET",
	model.AssetIoT:     "IOT",
}

func (ConsensusPolicy) Assess(req model.IdentityRequest, rng *rand.Rand) Verdict {
	reasoning := []string{
		fmt.Sprintf("asset type %q is registrable", req.Type),
	}
	if prefix, ok := typePrefixes[req.Type]; ok {
		if strings.HasPrefix(strings.ToUpper(req.ID), prefix) {
			reasoning = append(reasoning, "identifier pattern consistent with asset type")
		} else {
			reasoning = append(reasoning, "identifier pattern atypical for asset type, within tolerance")
		}
	}
	return Verdict{
		SecurityScore: 0.8 + rng.Float64()*0.15,
		Reasoning:     reasoning,
	}
}

// SecurityPolicy runs a synthetic risk assessment. Its security score is
// drawn from [0.7, 1.0) and drives the risk wording.
type SecurityPolicy struct{}

func (SecurityPolicy) Specialization() model.Specialization { return model.SpecSecurity }

func (SecurityPolicy) Assess(req model.IdentityRequest, rng *rand.Rand) Verdict {
	score := 0.7 + rng.Float64()*0.3
	risk := "low"
	if score < 0.8 {
		risk = "moderate"
	}
	return Verdict{
		SecurityScore: score,
		Reasoning: []string{
			fmt.Sprintf("risk assessment complete: %s risk profile", risk),
			fmt.Sprintf("security score %.2f for %q", score, req.ID),
		},
	}
}

// DefaultRoster builds the fixed three-agent roster used at process start.
// Seeds derive from the base seed so a fixed base yields a fully
// deterministic roster.
func DefaultRoster(params Params, baseSeed int64, logger *slog.Logger) []*Agent {
	return []*Agent{
		New("agent-validator-1", ValidatorPolicy{}, params, baseSeed, logger),
		New("agent-consensus-1", ConsensusPolicy{}, params, baseSeed+1, logger),
		New("agent-security-1", SecurityPolicy{}, params, baseSeed+2, logger),
	}
}
