package model

import (
	"time"

	"github.com/google/uuid"
)

// Reading is one timestamped telemetry sample. Values holds the
// variant-specific channels (engine_temp, heart_rate, battery_voltage, ...).
type Reading struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`

	// Codes holds active diagnostic codes, vehicle variant only.
	Codes []string `json:"codes,omitempty"`
}

// MaintenanceRecord is a logged maintenance event for a vehicle twin.
type MaintenanceRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	OdometerKm  float64   `json:"odometer_km"`
}

// TwinSnapshot is the externally visible state of a digital twin.
type TwinSnapshot struct {
	TwinID      uuid.UUID      `json:"twin_id"`
	SubjectID   string         `json:"subject_id"`
	Type        AssetType      `json:"type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdate  time.Time      `json:"last_update"`
	HealthScore float64        `json:"health_score"`
	AlertCount  int            `json:"alert_count"`
	Current     Reading        `json:"current_reading"`
}

// TwinReport is the derived diagnostic view of a twin: rule-table
// predictions over the current reading, never a trained model.
type TwinReport struct {
	Snapshot        TwinSnapshot        `json:"snapshot"`
	History         []Reading           `json:"history"`
	Predictions     map[string]any      `json:"predictions"`
	ActiveAlerts    []string            `json:"active_alerts"`
	Recommendations []string            `json:"recommendations"`
	Maintenance     []MaintenanceRecord `json:"maintenance,omitempty"`
}
