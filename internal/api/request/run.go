package request

import "encoding/json"

// CreateRun is the body for POST /api/runs (manual start).
type CreateRun struct {
	BotInstanceID string          `json:"bot_instance_id" validate:"required"`
	PhaseID       *string         `json:"phase_id"`
	Payload       json.RawMessage `json:"payload"`
}

// ReportRunStatus is the body for POST /api/runs/{id}/status, the callback
// the execution subsystem reports progress through.
type ReportRunStatus struct {
	Status   string          `json:"status" validate:"required,oneof=running finished error"`
	ExitCode *int            `json:"exit_code"`
	Summary  json.RawMessage `json:"summary"`
}

// AppendRunEvent is the body for POST /api/runs/{id}/events.
type AppendRunEvent struct {
	Level   string          `json:"level" validate:"required,oneof=debug info warn error"`
	Code    *string         `json:"code"`
	Message string          `json:"message" validate:"required"`
	Data    json.RawMessage `json:"data"`
}
