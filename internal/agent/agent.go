// Package agent implements the independent evaluators that vote on proposed
// asset identities. Each agent owns its own RNG and mutable state; nothing in
// this package is a process-wide singleton.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/veridex-labs/veridex/internal/model"
)

// Params holds the distributions behind the simulated evaluation workload.
// They are injectable so tests can run with zero latency and fixed seeds.
type Params struct {
	LatencyMin time.Duration
	LatencyMax time.Duration

	ConfidenceMin float64
	ConfidenceMax float64

	// MaliciousProbability is the chance a compromised agent actually
	// returns the malicious evaluation on a given call.
	MaliciousProbability float64

	// CompromiseDuration is how long a Byzantine flag stays set before
	// auto-reverting.
	CompromiseDuration time.Duration
}

// DefaultParams returns the production simulation parameters.
func DefaultParams() Params {
	return Params{
		LatencyMin:           50 * time.Millisecond,
		LatencyMax:           150 * time.Millisecond,
		ConfidenceMin:        0.85,
		ConfidenceMax:        0.95,
		MaliciousProbability: 0.3,
		CompromiseDuration:   30 * time.Second,
	}
}

// Metrics is a point-in-time view of an agent's rolling performance counters.
type Metrics struct {
	Decisions   int64         `json:"decisions"`
	MeanLatency time.Duration `json:"mean_latency"`
	LastSeen    time.Time     `json:"last_seen"`
}

// State is the roster-visible status of an agent, snapshotted by the
// coordinator at the start of each decision round.
type State struct {
	ID             string
	Specialization model.Specialization
	Online         bool
	Byzantine      bool
}

// Agent is a single evaluator with a specialization and a fault mode.
// Created once at process start; never destroyed during process lifetime.
type Agent struct {
	id     string
	policy Policy
	params Params
	logger *slog.Logger

	mu           sync.Mutex
	rng          *rand.Rand
	online       bool
	byzantine    bool
	revert       *time.Timer
	decisions    int64
	totalLatency time.Duration
	lastSeen     time.Time
}

// New creates an online agent with the given policy and a private seeded RNG.
func New(id string, policy Policy, params Params, seed int64, logger *slog.Logger) *Agent {
	return &Agent{
		id:     id,
		policy: policy,
		params: params,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		online: true,
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Specialization returns the agent's evaluation focus.
func (a *Agent) Specialization() model.Specialization { return a.policy.Specialization() }

// Snapshot returns the agent's roster-visible state.
func (a *Agent) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		ID:             a.id,
		Specialization: a.policy.Specialization(),
		Online:         a.online,
		Byzantine:      a.byzantine,
	}
}

// SetOnline toggles the agent's availability.
func (a *Agent) SetOnline(online bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.online = online
}

// Compromise sets the Byzantine flag and schedules its auto-revert.
// A second call while compromised resets the revert timer.
func (a *Agent) Compromise(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byzantine = true
	if a.revert != nil {
		a.revert.Stop()
	}
	a.revert = time.AfterFunc(d, a.Restore)
	a.logger.Warn("agent compromised", "agent_id", a.id, "revert_after", d)
}

// Restore clears the Byzantine flag immediately.
func (a *Agent) Restore() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.byzantine {
		return
	}
	a.byzantine = false
	if a.revert != nil {
		a.revert.Stop()
		a.revert = nil
	}
	a.logger.Info("agent restored", "agent_id", a.id)
}

// Metrics returns the agent's rolling performance counters.
func (a *Agent) Metrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := Metrics{Decisions: a.decisions, LastSeen: a.lastSeen}
	if a.decisions > 0 {
		m.MeanLatency = a.totalLatency / time.Duration(a.decisions)
	}
	return m
}

// Evaluate produces one vote on the proposed identity. It simulates
// evaluation latency and honors context cancellation while waiting; a
// dispatched evaluation otherwise always completes.
func (a *Agent) Evaluate(ctx context.Context, req model.IdentityRequest) (model.Evaluation, error) {
	start := time.Now()

	a.mu.Lock()
	byzantine := a.byzantine
	latency := a.params.LatencyMin
	if span := a.params.LatencyMax - a.params.LatencyMin; span > 0 {
		latency += time.Duration(a.rng.Int63n(int64(span)))
	}
	malicious := byzantine && a.rng.Float64() < a.params.MaliciousProbability
	confidence := a.params.ConfidenceMin +
		a.rng.Float64()*(a.params.ConfidenceMax-a.params.ConfidenceMin)
	a.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return model.Evaluation{}, fmt.Errorf("agent %s: evaluate: %w", a.id, ctx.Err())
		case <-timer.C:
		}
	}

	var eval model.Evaluation
	if malicious {
		eval = model.Evaluation{
			AgentID:        a.id,
			Specialization: a.policy.Specialization(),
			Decision:       model.DecisionRejected,
			Confidence:     0.2,
			SecurityScore:  0.1,
			Reasoning:      []string{"malicious rejection"},
			Byzantine:      true,
		}
	} else {
		a.mu.Lock()
		verdict := a.policy.Assess(req, a.rng)
		a.mu.Unlock()
		eval = model.Evaluation{
			AgentID:        a.id,
			Specialization: a.policy.Specialization(),
			Decision:       model.DecisionApproved,
			Confidence:     confidence,
			SecurityScore:  verdict.SecurityScore,
			Reasoning:      verdict.Reasoning,
		}
	}

	a.mu.Lock()
	a.decisions++
	a.totalLatency += time.Since(start)
	a.lastSeen = time.Now()
	a.mu.Unlock()

	return eval, nil
}
