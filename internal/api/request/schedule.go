package request

import "encoding/json"

// CreateSchedule is the body for POST /api/schedules. StartAt accepts
// RFC3339 or "YYYY-MM-DD HH:MM" interpreted in the application time zone.
type CreateSchedule struct {
	BotInstanceID string          `json:"bot_instance_id" validate:"required"`
	Kind          string          `json:"kind" validate:"required,oneof=full phase"`
	PhaseID       *string         `json:"phase_id"`
	Payload       json.RawMessage `json:"payload"`
	StartAt       string          `json:"start_at" validate:"required"`
}

// UpdateSchedule is the body for PATCH /api/schedules/{id}. Absent fields
// are left unchanged; a present payload replaces the stored one wholesale.
type UpdateSchedule struct {
	StartAt *string         `json:"start_at"`
	Payload json.RawMessage `json:"payload"`
}

// CopyDay is the body for POST /api/schedules/copy-day. Dates are
// "YYYY-MM-DD" in the application time zone.
type CopyDay struct {
	BotInstanceID string `json:"bot_instance_id" validate:"required"`
	FromDate      string `json:"from_date" validate:"required"`
	ToDate        string `json:"to_date" validate:"required"`
}
