package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bloxkit/experience-notify/internal/config"
)

// ConnectRedis parses the configured URL, opens a client, and verifies
// connectivity with a ping before handing the client out.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
