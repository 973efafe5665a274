// Package consensus implements the decision coordination core: parallel
// dispatch of agent evaluations, weighted aggregation into a consensus
// verdict, and Byzantine-exclusion recovery.
package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/veridex-labs/veridex/internal/agent"
	"github.com/veridex-labs/veridex/internal/model"
)

var (
	tracer = otel.Tracer("veridex/consensus")
	meter  = otel.Meter("veridex/consensus")
)

// Recorder receives finalized sessions for durable audit. Implemented by the
// ledger stores; recording is best-effort and never fails a decision.
type Recorder interface {
	Record(ctx context.Context, session *model.CoordinationSession) error
}

// Config holds coordinator tuning. Zero values fall back to defaults.
type Config struct {
	// HistoryCapacity bounds the in-memory session history (default 50).
	HistoryCapacity int

	// DispatchTimeout bounds a full evaluation round. A stalled agent call
	// surfaces as a dispatch failure instead of hanging the decision
	// (default 10s).
	DispatchTimeout time.Duration

	// CompromiseDuration is how long a simulated attack keeps an agent
	// Byzantine (default 30s).
	CompromiseDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = 50
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 10 * time.Second
	}
	if c.CompromiseDuration <= 0 {
		c.CompromiseDuration = 30 * time.Second
	}
	return c
}

// Coordinator fans evaluation requests out to the agent roster, aggregates
// the votes, applies Byzantine correction, and retains bounded history.
type Coordinator struct {
	roster   []*agent.Agent
	cfg      Config
	logger   *slog.Logger
	recorder Recorder

	mu      sync.Mutex
	rng     *rand.Rand
	history []*model.CoordinationSession
	byID    map[uuid.UUID]*model.CoordinationSession

	decisions  metric.Int64Counter
	duration   metric.Float64Histogram
	byzantines metric.Int64Counter
}

// New creates a coordinator over the given roster. recorder may be nil.
func New(roster []*agent.Agent, cfg Config, recorder Recorder, seed int64, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		roster:   roster,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		recorder: recorder,
		rng:      rand.New(rand.NewSource(seed)),
		byID:     make(map[uuid.UUID]*model.CoordinationSession),
	}
	c.decisions, _ = meter.Int64Counter("consensus.decisions",
		metric.WithDescription("Completed coordination rounds, by final decision."))
	c.duration, _ = meter.Float64Histogram("consensus.decision.duration",
		metric.WithDescription("Wall-clock duration of a coordination round."),
		metric.WithUnit("ms"))
	c.byzantines, _ = meter.Int64Counter("consensus.byzantine.detected",
		metric.WithDescription("Byzantine evaluations excluded from consensus."))
	return c
}

// Decide runs one coordination round for the proposed identity.
//
// Agent state is snapshotted at entry: an attack toggle landing mid-round
// affects the evaluations themselves (the agent reads its own flag) but not
// which agents participate. Dispatch is all-or-nothing; any failed or
// timed-out evaluation fails the whole round, returning a failure session
// together with a non-nil error so callers keep the audit trail.
func (c *Coordinator) Decide(ctx context.Context, req model.IdentityRequest) (*model.CoordinationSession, error) {
	ctx, span := tracer.Start(ctx, "consensus.Decide")
	defer span.End()
	span.SetAttributes(
		attribute.String("identity.id", req.ID),
		attribute.String("identity.type", string(req.Type)),
	)

	start := time.Now()
	session := &model.CoordinationSession{
		ID:            uuid.New(),
		IdentityID:    req.ID,
		AssetType:     req.Type,
		CreatedAt:     start.UTC(),
		FinalDecision: model.DecisionRejected,
	}

	var online []*agent.Agent
	for _, a := range c.roster {
		if a.Snapshot().Online {
			online = append(online, a)
		}
	}
	if len(online) == 0 {
		return c.fail(ctx, session, start, fmt.Errorf("consensus: no agents online"))
	}

	evals, err := c.dispatch(ctx, online, req)
	if err != nil {
		return c.fail(ctx, session, start, err)
	}

	session.Evaluations = evals
	session.ParticipatingCount = len(evals)
	session.Consensus = Aggregate(evals)
	session.FinalDecision = session.Consensus.Recommended

	honest, flagged := honestSubset(evals)
	if len(flagged) > 0 {
		corrected := Aggregate(honest)
		session.Corrected = &corrected
		session.FinalDecision = corrected.Recommended
		session.ByzantineAgents = flagged
		session.ByzantineDetected = len(flagged)
		session.FaultTolerant = true
		c.byzantines.Add(ctx, int64(len(flagged)))
	}

	session.ProcessingTime = time.Since(start).Milliseconds()
	c.append(session)
	c.record(ctx, session)

	c.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", string(session.FinalDecision))))
	c.duration.Record(ctx, float64(session.ProcessingTime))

	c.logger.Info("coordination round complete",
		"session_id", session.ID,
		"identity_id", session.IdentityID,
		"decision", session.FinalDecision,
		"ratio", session.Consensus.Ratio,
		"byzantine_detected", session.ByzantineDetected,
		"duration_ms", session.ProcessingTime,
	)
	return session, nil
}

// dispatch runs the scatter/gather over the online agents. No partial
// results: the first error cancels the group and fails the round.
func (c *Coordinator) dispatch(ctx context.Context, online []*agent.Agent, req model.IdentityRequest) ([]model.Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DispatchTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	evals := make([]model.Evaluation, len(online))
	for i, a := range online {
		g.Go(func() error {
			eval, err := a.Evaluate(ctx, req)
			if err != nil {
				return err
			}
			evals[i] = eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("consensus: dispatch: %w", err)
	}
	return evals, nil
}

// fail finalizes a dispatch-failure session. The session is retained and
// recorded so the failure stays auditable, and returned alongside the error.
func (c *Coordinator) fail(ctx context.Context, session *model.CoordinationSession, start time.Time, err error) (*model.CoordinationSession, error) {
	session.Error = err.Error()
	session.ProcessingTime = time.Since(start).Milliseconds()
	c.append(session)
	c.record(ctx, session)
	c.logger.Warn("coordination round failed",
		"session_id", session.ID,
		"identity_id", session.IdentityID,
		"error", err,
	)
	return session, err
}

// append adds the session to the bounded FIFO history, evicting the oldest.
func (c *Coordinator) append(session *model.CoordinationSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, session)
	c.byID[session.ID] = session
	if len(c.history) > c.cfg.HistoryCapacity {
		evicted := c.history[0]
		c.history = c.history[1:]
		delete(c.byID, evicted.ID)
	}
}

func (c *Coordinator) record(ctx context.Context, session *model.CoordinationSession) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, session); err != nil {
		c.logger.Warn("ledger record failed", "session_id", session.ID, "error", err)
	}
}

// Session returns a session by id, or false if it has been evicted or never
// existed.
func (c *Coordinator) Session(id uuid.UUID) (*model.CoordinationSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	return s, ok
}

// Sessions returns up to limit sessions, newest first. limit <= 0 returns
// the full retained history.
func (c *Coordinator) Sessions(limit int) []*model.CoordinationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*model.CoordinationSession, 0, n)
	for i := len(c.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.history[i])
	}
	return out
}

// SimulateAttack flips one randomly chosen online agent's Byzantine flag.
// The flag auto-reverts after the configured compromise duration. The toggle
// is deliberately unordered relative to in-flight Decide calls; participation
// is fixed at round entry but an agent reads its own flag per evaluation.
func (c *Coordinator) SimulateAttack() (model.AttackResult, error) {
	var online []*agent.Agent
	for _, a := range c.roster {
		if a.Snapshot().Online {
			online = append(online, a)
		}
	}
	if len(online) == 0 {
		return model.AttackResult{}, fmt.Errorf("consensus: no agents online to compromise")
	}

	c.mu.Lock()
	target := online[c.rng.Intn(len(online))]
	c.mu.Unlock()

	target.Compromise(c.cfg.CompromiseDuration)
	return model.AttackResult{
		CompromisedAgentID: target.ID(),
		DurationSeconds:    int(c.cfg.CompromiseDuration.Seconds()),
	}, nil
}

// Roster returns the roster-visible state of every agent.
func (c *Coordinator) Roster() []agent.State {
	states := make([]agent.State, len(c.roster))
	for i, a := range c.roster {
		states[i] = a.Snapshot()
	}
	return states
}

// Agents exposes the underlying roster for operational toggles.
func (c *Coordinator) Agents() []*agent.Agent {
	return c.roster
}
