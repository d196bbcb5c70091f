package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the job stream.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Stream is the name of the stream workers consume.
	Stream string
}

// Redis submits jobs by appending them to a Redis stream. Workers consume
// the stream with a consumer group, so a submitted entry survives worker
// restarts.
type Redis struct {
	client *redis.Client
	stream string
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client, stream: cfg.Stream}, nil
}

func (r *Redis) Submit(ctx context.Context, job Job) error {
	config, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("encode job config: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"image_ref": job.ImageRef,
			"run_id":    job.RunID,
			"config":    string(config),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("submit run %s: %w", job.RunID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Executor = (*Redis)(nil)
