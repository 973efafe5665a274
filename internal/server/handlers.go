package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veridex-labs/veridex/internal/consensus"
	"github.com/veridex-labs/veridex/internal/explain"
	"github.com/veridex-labs/veridex/internal/model"
	"github.com/veridex-labs/veridex/internal/twin"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	coordinator *consensus.Coordinator
	engine      *explain.Engine
	registry    *twin.Registry
	logger      *slog.Logger
	startedAt   time.Time
	version     string
	maxBody     int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Coordinator         *consensus.Coordinator
	Engine              *explain.Engine
	Registry            *twin.Registry
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		coordinator: d.Coordinator,
		engine:      d.Engine,
		registry:    d.Registry,
		logger:      d.Logger,
		startedAt:   time.Now(),
		version:     d.Version,
		maxBody:     d.MaxRequestBodyBytes,
	}
}

// HandleSubmitIdentity handles POST /v1/identities. Runs a full coordination
// round and returns the session summary. The explanation is derived eagerly so
// it is available for lookup immediately after submission.
func (h *Handlers) HandleSubmitIdentity(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitIdentityRequest
	if err := decodeJSON(w, r, &req, h.maxBody); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	identity := model.IdentityRequest{ID: req.ID, Type: req.Type, Metadata: req.Metadata}
	if err := identity.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	session, err := h.coordinator.Decide(r.Context(), identity)
	if err != nil {
		// The failure session is still recorded and addressable; surface
		// its id alongside the error.
		h.logger.Warn("coordination failed", "identity_id", identity.ID, "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, session.Summary())
		return
	}
	h.engine.Explain(session)

	writeJSON(w, r, http.StatusCreated, session.Summary())
}

// HandleListSessions handles GET /v1/sessions.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	sessions := h.coordinator.Sessions(limit)

	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	writeJSON(w, r, http.StatusOK, summaries)
}

// HandleGetSession handles GET /v1/sessions/{session_id}.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid session id")
		return
	}
	session, ok := h.coordinator.Session(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "session not found")
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

// HandleGetExplanation handles GET /v1/sessions/{session_id}/explanation.
// Falls back to deriving on demand when the explanation history has already
// evicted the entry but the session is still retained.
func (h *Handlers) HandleGetExplanation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid session id")
		return
	}

	exp, err := h.engine.Lookup(id)
	if errors.Is(err, explain.ErrNotFound) {
		session, ok := h.coordinator.Session(id)
		if !ok {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "explanation not found")
			return
		}
		exp = h.engine.Explain(session)
	}
	writeJSON(w, r, http.StatusOK, exp)
}

// HandleAttack handles POST /v1/attack (admin). Compromises one random online
// agent for the configured duration.
func (h *Handlers) HandleAttack(w http.ResponseWriter, r *http.Request) {
	result, err := h.coordinator.SimulateAttack()
	if err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleAnalyticsExport handles GET /v1/analytics/export?limit=&format= (admin).
func (h *Handlers) HandleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	format := model.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = model.ExportStructured
	}
	if format != model.ExportStructured && format != model.ExportFlat {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "format must be structured or flat")
		return
	}
	writeJSON(w, r, http.StatusOK, h.engine.Export(limit, format))
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"agents":         h.coordinator.Roster(),
	})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
