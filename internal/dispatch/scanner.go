// Package dispatch runs the periodic scan that turns due schedules into
// queued runs handed to the execution subsystem.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/jbbskl/finalsoftware/internal/core"
	"github.com/jbbskl/finalsoftware/internal/executor"
	"github.com/jbbskl/finalsoftware/internal/jobconfig"
	"github.com/jbbskl/finalsoftware/internal/model"
	"github.com/jbbskl/finalsoftware/internal/platform"
)

const submitRetries = 2

// Scanner is the dispatch loop. Each tick claims due schedules, materializes
// runs and submits them. Claims are atomic conditional updates, so multiple
// replicas can tick concurrently without double-dispatching.
type Scanner struct {
	services *core.Services
	exec     executor.Executor
	logger   zerolog.Logger
	metrics  *scannerMetrics

	window time.Duration
	now    func() time.Time
}

func NewScanner(services *core.Services, exec executor.Executor, logger zerolog.Logger,
	reg prometheus.Registerer, window time.Duration) *Scanner {
	return &Scanner{
		services: services,
		exec:     exec,
		logger:   logger.With().Str("component", "scanner").Logger(),
		metrics:  newScannerMetrics(reg),
		window:   window,
		now:      time.Now,
	}
}

// Scan runs one tick. A failure on one schedule never aborts the others;
// only the due query and the missed sweep can fail the tick as a whole.
func (s *Scanner) Scan(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.tickDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.now().In(s.services.Schedule.Rules().Location())

	due, err := s.services.Schedule.DueForDispatch(ctx, now, s.window)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	s.metrics.due.Set(float64(len(due)))

	dispatched := 0
	for _, sc := range due {
		if err := s.dispatchOne(ctx, sc, now); err != nil {
			s.metrics.errors.Inc()
			s.logger.Error().Err(err).
				Str("schedule_id", sc.ID).
				Time("start_at", sc.StartAt).
				Msg("dispatch failed, schedule stays eligible")
			continue
		}
		dispatched++
	}

	if err := s.sweepMissed(ctx, now); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if len(due) > 0 {
		s.logger.Info().Int("due", len(due)).Int("dispatched", dispatched).Msg("tick complete")
	}
	return nil
}

func (s *Scanner) dispatchOne(ctx context.Context, sc model.Schedule, now time.Time) error {
	instance, err := s.services.BotInstance.GetByID(ctx, sc.BotInstanceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The schedule stays unclaimed and retries until the window
			// closes, then the sweep marks it missed.
			s.logger.Warn().
				Str("schedule_id", sc.ID).
				Str("bot_instance_id", sc.BotInstanceID).
				Msg("bot instance missing, skipping")
			return nil
		}
		return err
	}

	satisfied, err := s.services.Run.HasActiveRunNear(ctx, instance.BotCode, instance.OwnerID, sc.StartAt)
	if err != nil {
		return err
	}
	if satisfied {
		// A live run already covers this firing; stamp the claim so the
		// schedule is not re-checked every tick.
		if _, err := s.services.Schedule.Claim(ctx, sc.ID, now); err != nil {
			return err
		}
		s.metrics.duplicates.Inc()
		s.logger.Info().Str("schedule_id", sc.ID).Msg("run already exists, no-op dispatch")
		return nil
	}

	job, err := s.buildJob(ctx, sc, instance)
	if err != nil {
		return err
	}

	// The claim is the exactly-once gate: losing it means another replica
	// owns this firing, and everything after it compensates on failure.
	claimed, err := s.services.Schedule.Claim(ctx, sc.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	meta := jobconfig.Meta{
		ScheduleID: sc.ID,
		Kind:       sc.Kind,
		PhaseID:    sc.PhaseID,
		Payload:    sc.Payload,
	}
	summary, _ := json.Marshal(map[string]any{
		"schedule_id": sc.ID,
		"kind":        sc.Kind,
		"phase_id":    sc.PhaseID,
		"payload":     sc.Payload,
		"minute_key":  s.services.Schedule.Rules().MinuteKey(sc.StartAt),
	})

	run, err := s.services.Run.Create(ctx, core.CreateRunParams{
		OwnerID:    instance.OwnerID,
		BotCode:    instance.BotCode,
		ConfigID:   platform.NewID(),
		ScheduleID: &sc.ID,
		ImageRef:   imageRef(instance.BotCode),
		Summary:    summary,
	})
	if err != nil {
		if uerr := s.services.Schedule.Unclaim(ctx, sc.ID); uerr != nil {
			s.logger.Error().Err(uerr).Str("schedule_id", sc.ID).Msg("unclaim after failed run insert")
		}
		return err
	}

	if err := s.submit(ctx, executor.Job{
		ImageRef: run.ImageRef,
		RunID:    run.ID,
		Config:   job.Merge(meta),
	}); err != nil {
		// Re-arm so the next tick retries while the window is open.
		if derr := s.services.Run.DeleteQueued(ctx, run.ID); derr != nil {
			s.logger.Error().Err(derr).Str("run_id", run.ID).Msg("delete queued run after failed submit")
		}
		if uerr := s.services.Schedule.Unclaim(ctx, sc.ID); uerr != nil {
			s.logger.Error().Err(uerr).Str("schedule_id", sc.ID).Msg("unclaim after failed submit")
		}
		return fmt.Errorf("submit run %s: %w", run.ID, err)
	}

	s.metrics.dispatched.Inc()
	s.logger.Info().
		Str("schedule_id", sc.ID).
		Str("run_id", run.ID).
		Str("bot_code", instance.BotCode).
		Time("start_at", sc.StartAt).
		Msg("dispatched")
	return nil
}

func (s *Scanner) buildJob(ctx context.Context, sc model.Schedule, instance *model.BotInstance) (jobconfig.Job, error) {
	base, err := jobconfig.Load(instance.ConfigPath, instance.BotCode)
	if err != nil {
		return nil, err
	}

	if sc.Kind == model.ScheduleKindPhase && sc.PhaseID != nil {
		phase, err := s.services.Phase.GetForInstance(ctx, *sc.PhaseID, sc.BotInstanceID)
		if err != nil {
			return nil, err
		}
		return jobconfig.PhaseJob{Base: base, PhaseConfig: phase.Config}, nil
	}
	return jobconfig.FullJob{Base: base}, nil
}

func (s *Scanner) submit(ctx context.Context, job executor.Job) error {
	backoff := retry.WithMaxRetries(submitRetries, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.exec.Submit(ctx, job); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *Scanner) sweepMissed(ctx context.Context, now time.Time) error {
	missed, err := s.services.Schedule.SweepMissed(ctx, now, s.window)
	if err != nil {
		return err
	}
	for _, sc := range missed {
		s.metrics.missed.Inc()
		s.logger.Warn().
			Str("schedule_id", sc.ID).
			Str("bot_instance_id", sc.BotInstanceID).
			Time("start_at", sc.StartAt).
			Msg("schedule missed its dispatch window")
	}
	return nil
}

func imageRef(botCode string) string {
	return fmt.Sprintf("bot-%s:latest", botCode)
}
