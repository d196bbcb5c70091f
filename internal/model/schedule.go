package model

import (
	"encoding/json"
	"time"
)

// Schedule is a persisted trigger that should cause one Run to be created at
// a specific future time. DispatchedAt is null until the scanner claims the
// schedule; MissedAt is set when a schedule ages out of the dispatch window
// without ever being claimed.
type Schedule struct {
	ID            string          `json:"id"`
	BotInstanceID string          `json:"bot_instance_id"`
	Kind          string          `json:"kind"`
	PhaseID       *string         `json:"phase_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	StartAt       time.Time       `json:"start_at"`
	DispatchedAt  *time.Time      `json:"dispatched_at,omitempty"`
	MissedAt      *time.Time      `json:"missed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
