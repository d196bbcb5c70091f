// Package jobconfig builds the configuration handed to the execution
// subsystem when a schedule fires: the bot instance's YAML base config plus
// per-dispatch schedule metadata, with phase jobs layering the phase's own
// config on top.
package jobconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MetaKey is the map key dispatch metadata is stored under in the merged
// config. Bots read it back to know which schedule (and phase) triggered them.
const MetaKey = "schedule_meta"

// Base is the bot instance's on-disk configuration.
type Base map[string]any

// Load reads a YAML base config from path. A missing file is not an error:
// instances without a written config run on a minimal config carrying only
// their bot code.
func Load(path, botCode string) (Base, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Base{"bot_code": botCode}, nil
		}
		return nil, fmt.Errorf("read base config %s: %w", path, err)
	}

	var base Base
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("parse base config %s: %w", path, err)
	}
	if base == nil {
		base = Base{}
	}
	if _, ok := base["bot_code"]; !ok {
		base["bot_code"] = botCode
	}
	return base, nil
}

// Meta is the per-dispatch schedule context merged into every job config.
type Meta struct {
	ScheduleID string          `json:"schedule_id"`
	Kind       string          `json:"kind"`
	PhaseID    *string         `json:"phase_id"`
	Payload    json.RawMessage `json:"payload"`
}

func (m Meta) asMap() map[string]any {
	var payload any
	if len(m.Payload) > 0 {
		// Payload is stored as validated JSON; a decode failure here would
		// mean the column itself is corrupt, so fall back to the raw string.
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			payload = string(m.Payload)
		}
	}
	return map[string]any{
		"schedule_id": m.ScheduleID,
		"kind":        m.Kind,
		"phase_id":    m.PhaseID,
		"payload":     payload,
	}
}

// Job is a dispatchable configuration. The two shapes (full bot vs single
// phase) are distinct types so a phase job can never be built without its
// phase config.
type Job interface {
	Merge(meta Meta) map[string]any
}

// FullJob runs the bot instance's complete configuration.
type FullJob struct {
	Base Base
}

func (j FullJob) Merge(meta Meta) map[string]any {
	out := make(map[string]any, len(j.Base)+1)
	for k, v := range j.Base {
		out[k] = v
	}
	out[MetaKey] = meta.asMap()
	return out
}

// PhaseJob runs a single phase: the phase's config overlays the base, and the
// dispatch metadata goes on top of both.
type PhaseJob struct {
	Base        Base
	PhaseConfig json.RawMessage
}

func (j PhaseJob) Merge(meta Meta) map[string]any {
	out := make(map[string]any, len(j.Base)+2)
	for k, v := range j.Base {
		out[k] = v
	}
	var phase map[string]any
	if len(j.PhaseConfig) > 0 {
		if err := json.Unmarshal(j.PhaseConfig, &phase); err == nil {
			for k, v := range phase {
				out[k] = v
			}
		}
	}
	out[MetaKey] = meta.asMap()
	return out
}
