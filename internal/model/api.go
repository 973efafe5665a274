package model

import (
	"time"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeRejected      = "REJECTED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// SubmitIdentityRequest is the request body for POST /v1/identities.
type SubmitIdentityRequest struct {
	ID       string         `json:"id"`
	Type     AssetType      `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionSummary is the condensed session view returned on submission.
type SessionSummary struct {
	SessionID         string          `json:"session_id"`
	IdentityID        string          `json:"identity_id"`
	FinalDecision     Decision        `json:"final_decision"`
	Consensus         ConsensusResult `json:"consensus"`
	ByzantineDetected int             `json:"byzantine_detected"`
	FaultTolerant     bool            `json:"fault_tolerant"`
	ProcessingTimeMs  int64           `json:"processing_time_ms"`
}

// Summary condenses a session for the submission response.
func (s *CoordinationSession) Summary() SessionSummary {
	return SessionSummary{
		SessionID:         s.ID.String(),
		IdentityID:        s.IdentityID,
		FinalDecision:     s.FinalDecision,
		Consensus:         s.Consensus,
		ByzantineDetected: s.ByzantineDetected,
		FaultTolerant:     s.FaultTolerant,
		ProcessingTimeMs:  s.ProcessingTime,
	}
}

// CreateTwinRequest is the request body for POST /v1/twins.
type CreateTwinRequest struct {
	SubjectID string         `json:"subject_id"`
	Type      AssetType      `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
