package model

import (
	"encoding/json"
	"time"
)

// BotInstance is an externally-owned automation job definition. The
// scheduling engine only reads it to resolve owner, bot code and base config
// when dispatching.
type BotInstance struct {
	ID         string    `json:"id"`
	OwnerType  string    `json:"owner_type"`
	OwnerID    string    `json:"owner_id"`
	BotCode    string    `json:"bot_code"`
	Status     string    `json:"status"`
	ConfigPath string    `json:"config_path"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Phase is an ordered sub-configuration of a bot instance. Schedules of kind
// "phase" target one instead of the full bot configuration.
type Phase struct {
	ID            string          `json:"id"`
	BotInstanceID string          `json:"bot_instance_id"`
	Name          string          `json:"name"`
	OrderNo       int             `json:"order_no"`
	Config        json.RawMessage `json:"config"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
