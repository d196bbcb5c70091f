package model

import (
	"encoding/json"
	"time"
)

// Run is one execution attempt of a bot instance. Scheduled runs carry the
// originating schedule ID; manual runs have none.
type Run struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	BotCode    string          `json:"bot_code"`
	ConfigID   string          `json:"config_id"`
	ScheduleID *string         `json:"schedule_id,omitempty"`
	Status     string          `json:"status"`
	QueuedAt   time.Time       `json:"queued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	ImageRef   string          `json:"image_ref"`
	ExitCode   *int            `json:"exit_code,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// RunEvent is a progress event reported by the execution subsystem while a
// run executes.
type RunEvent struct {
	ID      string          `json:"id"`
	RunID   string          `json:"run_id"`
	TS      time.Time       `json:"ts"`
	Level   string          `json:"level"`
	Code    *string         `json:"code,omitempty"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}
