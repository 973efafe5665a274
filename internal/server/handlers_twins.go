package server

import (
	"errors"
	"net/http"

	"github.com/veridex-labs/veridex/internal/model"
	"github.com/veridex-labs/veridex/internal/twin"
)

// HandleCreateTwin handles POST /v1/twins. Twin creation is gated on a full
// coordination round; a rejected round returns the session for audit.
func (h *Handlers) HandleCreateTwin(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTwinRequest
	if err := decodeJSON(w, r, &req, h.maxBody); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.SubjectID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "subject_id is required")
		return
	}

	created, err := h.registry.Create(r.Context(), req.Type, req.SubjectID, req.Metadata)
	if err != nil {
		var rejection *twin.RejectionError
		switch {
		case errors.Is(err, twin.ErrExists):
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		case errors.As(err, &rejection):
			writeRejection(w, r, rejection)
		default:
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, created.Snapshot())
}

// writeRejection returns the coordination session that denied twin creation
// so callers can audit which agents voted against it.
func writeRejection(w http.ResponseWriter, r *http.Request, rejection *twin.RejectionError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = writeEnvelope(w, model.APIError{
		Error: model.ErrorDetail{
			Code:    model.ErrCodeRejected,
			Message: rejection.Error(),
			Details: rejection.Session,
		},
		Meta: meta(r),
	})
}

// HandleListTwins handles GET /v1/twins.
func (h *Handlers) HandleListTwins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.registry.List())
}

// HandleGetTwin handles GET /v1/twins/{subject_id}.
func (h *Handlers) HandleGetTwin(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.Get(r.PathValue("subject_id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, t.Snapshot())
}

// HandleTwinTelemetry handles GET /v1/twins/{subject_id}/telemetry. Returns
// the full diagnostic report: reading history, predictions, alerts,
// recommendations, and maintenance log.
func (h *Handlers) HandleTwinTelemetry(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.Get(r.PathValue("subject_id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, t.Report())
}

// HandleDeleteTwin handles DELETE /v1/twins/{subject_id}. Stops the twin's
// runner before removal.
func (h *Handlers) HandleDeleteTwin(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.PathValue("subject_id")); err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
