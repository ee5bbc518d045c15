package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wrprafra/newsletter-project/internal/config"
)

// NewClient connects to Redis and verifies the connection with a ping.
// Parameters:
//   - ctx: context for the initial ping.
//   - cfg: redis address, password and database index.
// Returns:
//   - *redis.Client: connected client.
//   - error: non-nil if the ping fails.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
