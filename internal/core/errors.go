package core

import "errors"

// Domain errors surfaced to API callers as 4xx responses. Handlers map each
// to a status code and an error code string; none are retried automatically.
var (
	// ErrTooSoon: create/update violates the 1-hour lead rule.
	ErrTooSoon = errors.New("schedule must start at least 1 hour in advance")

	// ErrTooCloseToFire: delete violates the 10-minute cutoff; the scanner
	// may already have claimed the schedule.
	ErrTooCloseToFire = errors.New("schedule can only be deleted at least 10 minutes before start time")

	// ErrInvalidKindPhase: structural mismatch between kind and phase_id.
	ErrInvalidKindPhase = errors.New("phase_id is required for phase schedules and forbidden for full schedules")

	// ErrNotFound: schedule, phase, bot instance or run missing.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateStartTime: a schedule already exists for the bot instance
	// at the exact same instant.
	ErrDuplicateStartTime = errors.New("a schedule already exists for this bot instance at this time")

	// ErrDuplicateRun: an active run already exists for the bot at this time.
	ErrDuplicateRun = errors.New("a run is already scheduled for this bot at this time")

	// ErrRunNotActive: the run is not in a stoppable state.
	ErrRunNotActive = errors.New("run is not queued or running")
)

// Code returns the short error code for a domain error, or "" for
// non-domain errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrTooSoon):
		return "TooSoon"
	case errors.Is(err, ErrTooCloseToFire):
		return "TooCloseToFire"
	case errors.Is(err, ErrInvalidKindPhase):
		return "InvalidKindPhase"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicateStartTime):
		return "DuplicateStartTime"
	case errors.Is(err, ErrDuplicateRun):
		return "DuplicateRun"
	case errors.Is(err, ErrRunNotActive):
		return "RunNotActive"
	}
	return ""
}
