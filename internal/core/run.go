package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jbbskl/finalsoftware/internal/model"
	"github.com/jbbskl/finalsoftware/internal/platform"
)

// RunGuardTolerance is the symmetric window around a schedule's start inside
// which an existing queued/running run counts as the same firing. The run's
// queued_at is a server timestamp, not start_at itself, so an exact match
// would never hit; one minute absorbs scanner-tick jitter without matching
// an unrelated run of the same bot elsewhere in the day.
const RunGuardTolerance = time.Minute

// hasActiveRunNear is the idempotent run guard: it reports whether a
// queued/running run already exists for (botCode, ownerID) with queued_at
// within the tolerance window of startAt.
func hasActiveRunNear(ctx context.Context, db DB, botCode, ownerID string, startAt time.Time) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM runs
			WHERE bot_code = $1 AND owner_id = $2
			  AND status = ANY($3)
			  AND queued_at >= $4 AND queued_at <= $5
		)`,
		botCode, ownerID, model.ActiveRunStatuses,
		startAt.Add(-RunGuardTolerance), startAt.Add(RunGuardTolerance),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// RunService owns the run lifecycle: creation (scheduled and manual), the
// idempotent run guard, stop bookkeeping and status reports from the
// execution subsystem.
type RunService struct {
	db  DB
	now func() time.Time
}

func NewRunService(db DB) *RunService {
	return &RunService{db: db, now: time.Now}
}

const runColumns = `id, owner_id, bot_code, config_id, schedule_id, status, queued_at, started_at, finished_at, image_ref, exit_code, summary`

func scanRun(row interface{ Scan(dest ...any) error }) (model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.OwnerID, &r.BotCode, &r.ConfigID, &r.ScheduleID, &r.Status,
		&r.QueuedAt, &r.StartedAt, &r.FinishedAt, &r.ImageRef, &r.ExitCode, &r.Summary)
	return r, err
}

// HasActiveRunNear reports whether this (botCode, ownerID, startAt) firing is
// already satisfied by an existing queued or running run.
func (s *RunService) HasActiveRunNear(ctx context.Context, botCode, ownerID string, startAt time.Time) (bool, error) {
	active, err := hasActiveRunNear(ctx, s.db, botCode, ownerID, startAt)
	if err != nil {
		return false, fmt.Errorf("check active runs for %s/%s: %w", botCode, ownerID, err)
	}
	return active, nil
}

type CreateRunParams struct {
	OwnerID    string
	BotCode    string
	ConfigID   string
	ScheduleID *string
	ImageRef   string
	Summary    json.RawMessage
}

// Create inserts a queued run. queued_at is the server timestamp the guard's
// tolerance window is evaluated against.
func (s *RunService) Create(ctx context.Context, p CreateRunParams) (*model.Run, error) {
	run := &model.Run{
		ID:         platform.NewID(),
		OwnerID:    p.OwnerID,
		BotCode:    p.BotCode,
		ConfigID:   p.ConfigID,
		ScheduleID: p.ScheduleID,
		Status:     model.RunStatusQueued,
		QueuedAt:   s.now(),
		ImageRef:   p.ImageRef,
		Summary:    p.Summary,
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO runs (id, owner_id, bot_code, config_id, schedule_id, status, queued_at, image_ref, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.OwnerID, run.BotCode, run.ConfigID, run.ScheduleID, run.Status,
		run.QueuedAt, run.ImageRef, run.Summary,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// DeleteQueued removes a run that never left the queue. Used to compensate a
// dispatch whose hand-off to the execution subsystem failed.
func (s *RunService) DeleteQueued(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM runs WHERE id = $1 AND status = $2`, id, model.RunStatusQueued,
	)
	if err != nil {
		return fmt.Errorf("delete queued run %s: %w", id, err)
	}
	return nil
}

func (s *RunService) GetByID(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

// ListByBot returns the most recent runs for a (botCode, ownerID) pair.
func (s *RunService) ListByBot(ctx context.Context, botCode, ownerID string, limit int) ([]model.Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE bot_code = $1 AND owner_id = $2
		 ORDER BY queued_at DESC LIMIT $3`,
		botCode, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s/%s: %w", botCode, ownerID, err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Stop flips a queued/running run to stopped. Bookkeeping only: in-flight
// work in the execution subsystem is not terminated here.
func (s *RunService) Stop(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE runs SET status = $1, finished_at = $2 WHERE id = $3 AND status = ANY($4)`,
		model.RunStatusStopped, s.now(), id, model.ActiveRunStatuses,
	)
	if err != nil {
		return fmt.Errorf("stop run %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check run %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("stop run %s: %w", id, ErrRunNotActive)
}

type StatusReport struct {
	Status   string
	ExitCode *int
	Summary  json.RawMessage
}

// ReportStatus applies a status report from the execution subsystem.
func (s *RunService) ReportStatus(ctx context.Context, id string, report StatusReport) (*model.Run, error) {
	now := s.now()

	var err error
	switch report.Status {
	case model.RunStatusRunning:
		_, err = s.db.Exec(ctx,
			`UPDATE runs SET status = $1, started_at = COALESCE(started_at, $2) WHERE id = $3`,
			report.Status, now, id,
		)
	case model.RunStatusFinished, model.RunStatusError:
		_, err = s.db.Exec(ctx,
			`UPDATE runs SET status = $1, finished_at = $2, exit_code = $3,
			        summary = COALESCE($4, summary)
			 WHERE id = $5`,
			report.Status, now, report.ExitCode, report.Summary, id,
		)
	default:
		return nil, fmt.Errorf("report status for run %s: invalid status %q", id, report.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("report status for run %s: %w", id, err)
	}

	return s.GetByID(ctx, id)
}

type AppendEventParams struct {
	Level   string
	Code    *string
	Message string
	Data    json.RawMessage
}

func (s *RunService) AppendEvent(ctx context.Context, runID string, p AppendEventParams) (*model.RunEvent, error) {
	if _, err := s.GetByID(ctx, runID); err != nil {
		return nil, err
	}

	ev := &model.RunEvent{
		ID:      platform.NewID(),
		RunID:   runID,
		TS:      s.now(),
		Level:   p.Level,
		Code:    p.Code,
		Message: p.Message,
		Data:    p.Data,
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO run_events (id, run_id, ts, level, code, message, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.RunID, ev.TS, ev.Level, ev.Code, ev.Message, ev.Data,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run event: %w", err)
	}
	return ev, nil
}

func (s *RunService) ListEvents(ctx context.Context, runID string) ([]model.RunEvent, error) {
	if _, err := s.GetByID(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, ts, level, code, message, data FROM run_events
		 WHERE run_id = $1 ORDER BY ts`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events for run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []model.RunEvent
	for rows.Next() {
		var ev model.RunEvent
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.TS, &ev.Level, &ev.Code, &ev.Message, &ev.Data); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return events, nil
}
