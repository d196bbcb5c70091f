package model

// Run status constants.
const (
	RunStatusQueued   = "queued"
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusError    = "error"
	RunStatusStopped  = "stopped"
)

// Schedule kind constants.
const (
	ScheduleKindFull  = "full"
	ScheduleKindPhase = "phase"
)

// Bot instance status constants.
const (
	InstanceStatusInactive = "inactive"
	InstanceStatusActive   = "active"
	InstanceStatusError    = "error"
)

// ActiveRunStatuses are the statuses that count as a live run for the
// idempotent run guard.
var ActiveRunStatuses = []string{RunStatusQueued, RunStatusRunning}
