package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jbbskl/finalsoftware/internal/model"
)

// PhaseService reads phases. Phases are owned by the configuration
// subsystem; schedules of kind "phase" reference one.
type PhaseService struct {
	db DB
}

func NewPhaseService(db DB) *PhaseService {
	return &PhaseService{db: db}
}

const phaseColumns = `id, bot_instance_id, name, order_no, config, created_at, updated_at`

// GetForInstance retrieves a phase only if it belongs to the given bot
// instance. A phase that exists under another instance is reported as
// missing, the same as no phase at all.
func (s *PhaseService) GetForInstance(ctx context.Context, id, botInstanceID string) (*model.Phase, error) {
	var p model.Phase
	err := s.db.QueryRow(ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE id = $1 AND bot_instance_id = $2`,
		id, botInstanceID,
	).Scan(&p.ID, &p.BotInstanceID, &p.Name, &p.OrderNo, &p.Config, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phase %s for bot instance %s: %w", id, botInstanceID, ErrNotFound)
		}
		return nil, fmt.Errorf("get phase %s: %w", id, err)
	}
	return &p, nil
}

func (s *PhaseService) ListByInstance(ctx context.Context, botInstanceID string) ([]model.Phase, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE bot_instance_id = $1 ORDER BY order_no`,
		botInstanceID)
	if err != nil {
		return nil, fmt.Errorf("list phases for bot instance %s: %w", botInstanceID, err)
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		var p model.Phase
		if err := rows.Scan(&p.ID, &p.BotInstanceID, &p.Name, &p.OrderNo, &p.Config,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		phases = append(phases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phases: %w", err)
	}
	return phases, nil
}
