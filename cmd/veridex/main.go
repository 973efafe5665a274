package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/veridex-labs/veridex/internal/agent"
	"github.com/veridex-labs/veridex/internal/config"
	"github.com/veridex-labs/veridex/internal/consensus"
	"github.com/veridex-labs/veridex/internal/explain"
	"github.com/veridex-labs/veridex/internal/ledger"
	"github.com/veridex-labs/veridex/internal/ratelimit"
	"github.com/veridex-labs/veridex/internal/server"
	"github.com/veridex-labs/veridex/internal/telemetry"
	"github.com/veridex-labs/veridex/internal/twin"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("VERIDEX_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("veridex starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Open the session ledger.
	store, err := openLedger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer func() { _ = store.Close() }()
	logger.Info("ledger ready", "driver", cfg.LedgerDriver)

	// Build the agent roster and coordinator.
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
	coordinator := consensus.New(roster, consensus.Config{
		HistoryCapacity:    cfg.HistoryCapacity,
		DispatchTimeout:    cfg.DispatchTimeout,
		CompromiseDuration: cfg.CompromiseDuration,
	}, ledger.NewRecorder(store), seed, logger)

	engine := explain.NewEngine(cfg.ExplanationCapacity, logger)

	registry := twin.NewRegistry(coordinator, seed, logger)
	defer registry.Close()

	// Create rate limiter for the submission endpoint.
	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	if cfg.AdminToken == "" {
		logger.Warn("no admin token configured; attack simulation and analytics export are disabled")
	}

	srv := server.New(server.ServerConfig{
		Coordinator:         coordinator,
		Engine:              engine,
		Registry:            registry,
		Logger:              logger,
		Limiter:             limiter,
		AdminToken:          cfg.AdminToken,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop accepting requests and drain in-flight rounds,
	// then stop the twin runners (deferred) and close the ledger (deferred).
	slog.Info("veridex shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("veridex stopped")
	return nil
}

// openLedger creates the session store selected by VERIDEX_LEDGER_DRIVER.
func openLedger(ctx context.Context, cfg config.Config) (ledger.Store, error) {
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
