package veridex

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port        int
	seed        int64
	logger      *slog.Logger
	version     string
	ledger      Ledger
	middlewares []Middleware
}

// WithPort overrides the TCP port from config (VERIDEX_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithSeed fixes the base RNG seed so agent behavior is reproducible.
// Zero (the default) derives a seed from the clock.
func WithSeed(seed int64) Option {
	return func(o *resolvedOptions) { o.seed = seed }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithLedger replaces the built-in session ledger with an external sink.
// Only the last call wins.
func WithLedger(l Ledger) Option {
	return func(o *resolvedOptions) { o.ledger = l }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
