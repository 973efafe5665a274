package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veridex-labs/veridex/internal/consensus"
	"github.com/veridex-labs/veridex/internal/explain"
	"github.com/veridex-labs/veridex/internal/ratelimit"
	"github.com/veridex-labs/veridex/internal/twin"
)

// Server is the Veridex HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Limiter is optional (nil = no rate limiting).
type ServerConfig struct {
	Coordinator *consensus.Coordinator
	Engine      *explain.Engine
	Registry    *twin.Registry
	Logger      *slog.Logger

	Limiter    ratelimit.Limiter
	AdminToken string

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Middlewares are applied outermost, in registration order
	// (first-registered sees every request first).
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Coordinator:         cfg.Coordinator,
		Engine:              cfg.Engine,
		Registry:            cfg.Registry,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	submitRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)
	adminOnly := requireAdmin(cfg.AdminToken)

	mux := http.NewServeMux()

	// Identity submission (rate limited by IP; each submission runs a full
	// coordination round, so this is the expensive endpoint).
	mux.Handle("POST /v1/identities", submitRL(http.HandlerFunc(h.HandleSubmitIdentity)))

	// Session history and explanations.
	mux.HandleFunc("GET /v1/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /v1/sessions/{session_id}", h.HandleGetSession)
	mux.HandleFunc("GET /v1/sessions/{session_id}/explanation", h.HandleGetExplanation)

	// Attack simulation and analytics export (admin-only).
	mux.Handle("POST /v1/attack", adminOnly(http.HandlerFunc(h.HandleAttack)))
	mux.Handle("GET /v1/analytics/export", adminOnly(http.HandlerFunc(h.HandleAnalyticsExport)))

	// Digital twins.
	mux.HandleFunc("POST /v1/twins", h.HandleCreateTwin)
	mux.HandleFunc("GET /v1/twins", h.HandleListTwins)
	mux.HandleFunc("GET /v1/twins/{subject_id}", h.HandleGetTwin)
	mux.HandleFunc("GET /v1/twins/{subject_id}/telemetry", h.HandleTwinTelemetry)
	mux.HandleFunc("DELETE /v1/twins/{subject_id}", h.HandleDeleteTwin)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
