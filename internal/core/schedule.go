package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jbbskl/finalsoftware/internal/model"
	"github.com/jbbskl/finalsoftware/internal/platform"
	"github.com/jbbskl/finalsoftware/internal/timerule"
)

// ScheduleService owns the schedule store: CRUD with the timing rules
// enforced, the day-copy bulk operation, and the claim/sweep primitives the
// dispatch scanner runs on.
type ScheduleService struct {
	db    DB
	rules *timerule.Rules
	now   func() time.Time
}

func NewScheduleService(db DB, rules *timerule.Rules) *ScheduleService {
	return &ScheduleService{db: db, rules: rules, now: time.Now}
}

// Rules exposes the timing rules this store validates against.
func (s *ScheduleService) Rules() *timerule.Rules { return s.rules }

const scheduleColumns = `id, bot_instance_id, kind, phase_id, payload, start_at, dispatched_at, missed_at, created_at, updated_at`

func scanSchedule(row interface{ Scan(dest ...any) error }) (model.Schedule, error) {
	var sc model.Schedule
	err := row.Scan(&sc.ID, &sc.BotInstanceID, &sc.Kind, &sc.PhaseID, &sc.Payload,
		&sc.StartAt, &sc.DispatchedAt, &sc.MissedAt, &sc.CreatedAt, &sc.UpdatedAt)
	return sc, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type CreateScheduleParams struct {
	BotInstanceID string
	Kind          string
	PhaseID       *string
	Payload       json.RawMessage
	StartAt       time.Time
}

func (s *ScheduleService) Create(ctx context.Context, p CreateScheduleParams) (*model.Schedule, error) {
	switch p.Kind {
	case model.ScheduleKindFull:
		if p.PhaseID != nil {
			return nil, fmt.Errorf("create schedule: %w", ErrInvalidKindPhase)
		}
	case model.ScheduleKindPhase:
		if p.PhaseID == nil {
			return nil, fmt.Errorf("create schedule: %w", ErrInvalidKindPhase)
		}
	default:
		return nil, fmt.Errorf("create schedule: kind %q: %w", p.Kind, ErrInvalidKindPhase)
	}

	var ownerID, botCode string
	err := s.db.QueryRow(ctx,
		`SELECT owner_id, bot_code FROM bot_instances WHERE id = $1`, p.BotInstanceID,
	).Scan(&ownerID, &botCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bot instance %s: %w", p.BotInstanceID, ErrNotFound)
		}
		return nil, fmt.Errorf("resolve bot instance %s: %w", p.BotInstanceID, err)
	}

	if p.PhaseID != nil {
		var exists bool
		err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM phases WHERE id = $1 AND bot_instance_id = $2)`,
			*p.PhaseID, p.BotInstanceID,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check phase %s: %w", *p.PhaseID, err)
		}
		if !exists {
			return nil, fmt.Errorf("phase %s: %w", *p.PhaseID, ErrNotFound)
		}
	}

	now := s.now()
	if !s.rules.CanCreate(now, p.StartAt) {
		return nil, fmt.Errorf("create schedule: %w", ErrTooSoon)
	}

	// A live run at the same instant means this trigger is already satisfied.
	active, err := hasActiveRunNear(ctx, s.db, botCode, ownerID, p.StartAt)
	if err != nil {
		return nil, fmt.Errorf("check active runs: %w", err)
	}
	if active {
		return nil, fmt.Errorf("create schedule: %w", ErrDuplicateRun)
	}

	sc := &model.Schedule{
		ID:            platform.NewID(),
		BotInstanceID: p.BotInstanceID,
		Kind:          p.Kind,
		PhaseID:       p.PhaseID,
		Payload:       p.Payload,
		StartAt:       p.StartAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO schedules (id, bot_instance_id, kind, phase_id, payload, start_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sc.ID, sc.BotInstanceID, sc.Kind, sc.PhaseID, sc.Payload, sc.StartAt, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create schedule: %w", ErrDuplicateStartTime)
		}
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return sc, nil
}

type UpdateScheduleParams struct {
	StartAt *time.Time
	// Payload replaces the stored payload wholesale when non-nil.
	Payload json.RawMessage
}

// Update patches start_at and/or payload. Each UPDATE touches only the
// columns being changed; dispatched_at and missed_at are never written back
// from the snapshot read, so a concurrent scanner claim cannot be erased by
// a payload-only patch. Rescheduling clears both inside the same statement,
// re-arming the trigger.
func (s *ScheduleService) Update(ctx context.Context, id string, p UpdateScheduleParams) (*model.Schedule, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reschedule := p.StartAt != nil && !p.StartAt.Equal(existing.StartAt)
	if reschedule && !s.rules.CanCreate(s.now(), *p.StartAt) {
		return nil, fmt.Errorf("update schedule %s: %w", id, ErrTooSoon)
	}

	payload := existing.Payload
	if p.Payload != nil {
		payload = p.Payload
	}

	switch {
	case reschedule:
		_, err = s.db.Exec(ctx,
			`UPDATE schedules SET start_at = $1, payload = $2, dispatched_at = NULL, missed_at = NULL, updated_at = now()
			 WHERE id = $3`,
			*p.StartAt, payload, id,
		)
	case p.Payload != nil:
		_, err = s.db.Exec(ctx,
			`UPDATE schedules SET payload = $1, updated_at = now() WHERE id = $2`,
			payload, id,
		)
	default:
		return existing, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update schedule %s: %w", id, ErrDuplicateStartTime)
		}
		return nil, fmt.Errorf("update schedule %s: %w", id, err)
	}

	return s.GetByID(ctx, id)
}

// Delete hard-deletes a schedule. The 10-minute cutoff is part of the DELETE
// statement itself so a concurrent scanner claim and a delete cannot both
// succeed against stale reads.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	cutoff := s.now().Add(timerule.DeleteCutoff)

	tag, err := s.db.Exec(ctx,
		`DELETE FROM schedules WHERE id = $1 AND start_at >= $2`, id, cutoff,
	)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schedules WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check schedule %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("delete schedule %s: %w", id, ErrTooCloseToFire)
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return &sc, nil
}

type ScheduleFilter struct {
	BotInstanceID string
	From          *time.Time
	To            *time.Time
}

func (s *ScheduleService) List(ctx context.Context, f ScheduleFilter) ([]model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	var args []any
	var where []string

	if f.BotInstanceID != "" {
		args = append(args, f.BotInstanceID)
		where = append(where, fmt.Sprintf("bot_instance_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("start_at <= $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY start_at"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

type CopyDayResult struct {
	CopiedCount  int `json:"copied_count"`
	SkippedCount int `json:"skipped_count"`
}

// CopyDay clones every schedule of a bot instance from one calendar day onto
// another, keeping clock times. Items violating the create rule or colliding
// with an existing schedule are skipped; decisions are independent, so
// already-copied items stay copied when a later one is skipped.
func (s *ScheduleService) CopyDay(ctx context.Context, botInstanceID string, fromDate, toDate time.Time) (CopyDayResult, error) {
	var result CopyDayResult

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bot_instances WHERE id = $1)`, botInstanceID,
	).Scan(&exists); err != nil {
		return result, fmt.Errorf("check bot instance %s: %w", botInstanceID, err)
	}
	if !exists {
		return result, fmt.Errorf("bot instance %s: %w", botInstanceID, ErrNotFound)
	}

	dayStart, dayEnd := s.rules.DayBounds(fromDate)
	from, to := dayStart, dayEnd
	sources, err := s.List(ctx, ScheduleFilter{BotInstanceID: botInstanceID, From: &from, To: &to})
	if err != nil {
		return result, fmt.Errorf("load source day: %w", err)
	}

	now := s.now()
	for _, src := range sources {
		candidate := s.rules.CopyToDate(src.StartAt, toDate)

		if !s.rules.CanCreate(now, candidate) {
			result.SkippedCount++
			continue
		}

		var taken bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schedules WHERE bot_instance_id = $1 AND start_at = $2)`,
			botInstanceID, candidate,
		).Scan(&taken); err != nil {
			return result, fmt.Errorf("check target slot: %w", err)
		}
		if taken {
			result.SkippedCount++
			continue
		}

		_, err := s.db.Exec(ctx,
			`INSERT INTO schedules (id, bot_instance_id, kind, phase_id, payload, start_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			platform.NewID(), botInstanceID, src.Kind, src.PhaseID, src.Payload, candidate, now, now,
		)
		if err != nil {
			// A concurrent insert between the existence check and ours
			// counts as a collision, not a failure.
			if isUniqueViolation(err) {
				result.SkippedCount++
				continue
			}
			return result, fmt.Errorf("copy schedule %s: %w", src.ID, err)
		}
		result.CopiedCount++
	}

	return result, nil
}

// DueForDispatch returns schedules inside the dispatch window (now-window,
// now] that are neither claimed nor missed.
func (s *ScheduleService) DueForDispatch(ctx context.Context, now time.Time, window time.Duration) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE start_at > $1 AND start_at <= $2 AND dispatched_at IS NULL AND missed_at IS NULL
		 ORDER BY start_at`,
		now.Add(-window), now,
	)
	if err != nil {
		return nil, fmt.Errorf("select due schedules: %w", err)
	}
	defer rows.Close()

	var due []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due schedule: %w", err)
		}
		due = append(due, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due schedules: %w", err)
	}
	return due, nil
}

// Claim atomically marks a schedule dispatched. The conditional update is
// the exactly-once gate: when two scanner ticks race, exactly one sees a
// row affected.
func (s *ScheduleService) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE schedules SET dispatched_at = $1, updated_at = now()
		 WHERE id = $2 AND dispatched_at IS NULL`,
		now, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim schedule %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Unclaim re-arms a schedule after a failed dispatch so the next tick can
// retry while the window is still open.
func (s *ScheduleService) Unclaim(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE schedules SET dispatched_at = NULL, updated_at = now() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("unclaim schedule %s: %w", id, err)
	}
	return nil
}

// SweepMissed stamps schedules that aged out of the dispatch window without
// being claimed. They are kept for operator inspection, never auto-deleted.
func (s *ScheduleService) SweepMissed(ctx context.Context, now time.Time, window time.Duration) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE schedules SET missed_at = $1, updated_at = now()
		 WHERE start_at <= $2 AND dispatched_at IS NULL AND missed_at IS NULL
		 RETURNING `+scheduleColumns,
		now, now.Add(-window),
	)
	if err != nil {
		return nil, fmt.Errorf("sweep missed schedules: %w", err)
	}
	defer rows.Close()

	var missed []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan missed schedule: %w", err)
		}
		missed = append(missed, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missed schedules: %w", err)
	}
	return missed, nil
}
