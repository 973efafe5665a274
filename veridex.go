// Package veridex is the public API for embedding the Veridex identity
// coordination server.
//
// Embedding consumers import this package to construct and extend the server
// without forking it:
//
//	app, err := veridex.New(
//	    veridex.WithVersion(version),
//	    veridex.WithLogger(logger),
//	    veridex.WithLedger(myAuditSink{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: veridex (root) imports
// internal/*, but internal/* never imports veridex (root). Public types
// (Session, Twin, Explanation) are standalone structs with no internal
// imports; conversion helpers live here because this is the only file that
// sees both sides of the boundary.
package veridex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/veridex-labs/veridex/internal/agent"
	"github.com/veridex-labs/veridex/internal/config"
	"github.com/veridex-labs/veridex/internal/consensus"
	"github.com/veridex-labs/veridex/internal/explain"
	"github.com/veridex-labs/veridex/internal/ledger"
	"github.com/veridex-labs/veridex/internal/model"
	"github.com/veridex-labs/veridex/internal/ratelimit"
	"github.com/veridex-labs/veridex/internal/server"
	"github.com/veridex-labs/veridex/internal/telemetry"
	"github.com/veridex-labs/veridex/internal/twin"
)

// App is the Veridex server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	coordinator  *consensus.Coordinator
	engine       *explain.Engine
	registry     *twin.Registry
	srv          *server.Server
	store        ledger.Store // nil when a custom Ledger is installed
	customLedger Ledger       // nil when using a built-in driver
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Veridex server. It opens the session ledger, builds the
// agent roster, and wires all subsystems into a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("veridex starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	app := &App{
		cfg:          cfg,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}

	// Session ledger: a custom Ledger replaces the built-in driver.
	var recorder consensus.Recorder
	if o.ledger != nil {
		app.customLedger = o.ledger
		recorder = &ledgerAdapter{sink: o.ledger}
		logger.Info("ledger ready", "driver", "custom")
	} else {
		store, err := openStore(context.Background(), cfg)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("ledger: %w", err)
		}
		app.store = store
		recorder = ledger.NewRecorder(store)
		logger.Info("ledger ready", "driver", cfg.LedgerDriver)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	params := agent.DefaultParams()
	params.LatencyMin = cfg.AgentLatencyMin
	params.LatencyMax = cfg.AgentLatencyMax
	params.MaliciousProbability = cfg.MaliciousProbability
	params.CompromiseDuration = cfg.CompromiseDuration

	roster := agent.DefaultRoster(params, seed, logger)
	app.coordinator = consensus.New(roster, consensus.Config{
		HistoryCapacity:    cfg.HistoryCapacity,
		DispatchTimeout:    cfg.DispatchTimeout,
		CompromiseDuration: cfg.CompromiseDuration,
	}, recorder, seed, logger)

	app.engine = explain.NewEngine(cfg.ExplanationCapacity, logger)
	app.registry = twin.NewRegistry(app.coordinator, seed, logger)

	if cfg.RateLimitRPS > 0 {
		app.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	} else {
		app.limiter = ratelimit.NoopLimiter{}
	}

	middlewares := make([]func(http.Handler) http.Handler, 0, len(o.middlewares))
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	app.srv = server.New(server.ServerConfig{
		Coordinator:         app.coordinator,
		Engine:              app.engine,
		Registry:            app.registry,
		Logger:              logger,
		Limiter:             app.limiter,
		AdminToken:          cfg.AdminToken,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		Middlewares:         middlewares,
	})

	return app, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. All resources are released before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	a.logger.Info("veridex shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	return nil
}

// Handler returns the root HTTP handler, for mounting the App inside another
// server or exercising it with httptest.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

func (a *App) close() {
	a.registry.Close()
	_ = a.limiter.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.customLedger != nil {
		_ = a.customLedger.Close()
	}
	_ = a.otelShutdown(context.Background())
}

// Sessions returns up to limit recent coordination rounds, newest first, as
// public views.
func (a *App) Sessions(limit int) []Session {
	internal := a.coordinator.Sessions(limit)
	out := make([]Session, 0, len(internal))
	for _, s := range internal {
		out = append(out, toPublicSession(s))
	}
	return out
}

// Twins returns the public view of every registered twin.
func (a *App) Twins() []Twin {
	snapshots := a.registry.List()
	out := make([]Twin, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, Twin{
			TwinID:      s.TwinID,
			SubjectID:   s.SubjectID,
			Type:        string(s.Type),
			HealthScore: s.HealthScore,
			AlertCount:  s.AlertCount,
			CreatedAt:   s.CreatedAt,
			LastUpdate:  s.LastUpdate,
		})
	}
	return out
}

// ExplainSession returns the public explanation view for a session id.
func (a *App) ExplainSession(sessionID uuid.UUID) (Explanation, error) {
	exp, err := a.engine.Lookup(sessionID)
	if err != nil {
		return Explanation{}, err
	}
	return Explanation{
		SessionID:          exp.SessionID,
		Summary:            exp.Summary,
		WeightedConfidence: exp.WeightedConfidence,
		AnomalyScore:       exp.AnomalyScore,
		RiskFactorCount:    len(exp.RiskFactors),
		FinalDecision:      string(exp.FinalDecision),
	}, nil
}

// openStore creates the session store selected by VERIDEX_LEDGER_DRIVER.
func openStore(ctx context.Context, cfg config.Config) (ledger.Store, error) {
	switch cfg.LedgerDriver {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		return ledger.NewSQLiteStore(ctx, cfg.LedgerPath)
	case "postgres":
		return ledger.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.LedgerDriver)
	}
}

// ledgerAdapter bridges a public Ledger to the coordinator's Recorder.
type ledgerAdapter struct {
	sink Ledger
}

func (l *ledgerAdapter) Record(ctx context.Context, session *model.CoordinationSession) error {
	return l.sink.Append(ctx, toPublicSession(session))
}

// toPublicSession converts an internal session to its curated public view.
func toPublicSession(s *model.CoordinationSession) Session {
	return Session{
		ID:                s.ID,
		IdentityID:        s.IdentityID,
		AssetType:         string(s.AssetType),
		FinalDecision:     string(s.FinalDecision),
		ConsensusRatio:    s.Consensus.Ratio,
		ByzantineDetected: s.ByzantineDetected,
		ByzantineAgents:   append([]string(nil), s.ByzantineAgents...),
		FaultTolerant:     s.FaultTolerant,
		ProcessingTimeMs:  s.ProcessingTime,
		CreatedAt:         s.CreatedAt,
		Failed:            s.Failed(),
		Error:             s.Error,
	}
}
