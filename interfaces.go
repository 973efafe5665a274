package veridex

import (
	"context"
	"net/http"
)

// Ledger receives every finalized coordination session. When provided via
// WithLedger it replaces the built-in driver selected by
// VERIDEX_LEDGER_DRIVER, so embedders can ship sessions to an external audit
// sink. Append must be safe for concurrent use; failures are logged, never
// surfaced to the deciding request.
type Ledger interface {
	Append(ctx context.Context, session Session) error
	Close() error
}

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including
// /health. Multiple middlewares are applied in registration order
// (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
