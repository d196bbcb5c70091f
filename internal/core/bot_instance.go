package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jbbskl/finalsoftware/internal/model"
)

// BotInstanceService reads bot instances. Instances are owned by the
// provisioning subsystem; the scheduling engine only resolves them.
type BotInstanceService struct {
	db DB
}

func NewBotInstanceService(db DB) *BotInstanceService {
	return &BotInstanceService{db: db}
}

const botInstanceColumns = `id, owner_type, owner_id, bot_code, status, config_path, created_at, updated_at`

func scanBotInstance(row pgx.Row) (*model.BotInstance, error) {
	var b model.BotInstance
	err := row.Scan(&b.ID, &b.OwnerType, &b.OwnerID, &b.BotCode, &b.Status,
		&b.ConfigPath, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BotInstanceService) GetByID(ctx context.Context, id string) (*model.BotInstance, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+botInstanceColumns+` FROM bot_instances WHERE id = $1`, id)
	b, err := scanBotInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bot instance %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get bot instance %s: %w", id, err)
	}
	return b, nil
}

func (s *BotInstanceService) List(ctx context.Context, limit int, cursor string) ([]model.BotInstance, bool, error) {
	query := `SELECT ` + botInstanceColumns + ` FROM bot_instances`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list bot instances: %w", err)
	}
	defer rows.Close()

	var instances []model.BotInstance
	for rows.Next() {
		var b model.BotInstance
		if err := rows.Scan(&b.ID, &b.OwnerType, &b.OwnerID, &b.BotCode, &b.Status,
			&b.ConfigPath, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan bot instance: %w", err)
		}
		instances = append(instances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate bot instances: %w", err)
	}

	hasMore := len(instances) > limit
	if hasMore {
		instances = instances[:limit]
	}
	return instances, hasMore, nil
}
