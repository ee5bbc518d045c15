package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ImageCache maps normalized search keywords to final image URLs, and
// carries the image provider's rate counter and circuit breaker state.
type ImageCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewImageCache creates an ImageCache with the given entry TTL.
func NewImageCache(rdb *redis.Client, ttl time.Duration) *ImageCache {
	return &ImageCache{rdb: rdb, ttl: ttl}
}

func imageKey(keyword string) string {
	return "pixabay:img:" + strings.ToLower(strings.TrimSpace(keyword))
}

// Get returns the cached URL for keyword, or empty when absent.
func (c *ImageCache) Get(ctx context.Context, keyword string) (string, error) {
	val, err := c.rdb.Get(ctx, imageKey(keyword)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Set stores the URL for keyword with the cache TTL.
func (c *ImageCache) Set(ctx context.Context, keyword, url string) error {
	return c.rdb.Set(ctx, imageKey(keyword), url, c.ttl).Err()
}

// IncrMinuteCounter bumps the per-minute request counter and returns the
// count inside the current minute window.
func (c *ImageCache) IncrMinuteCounter(ctx context.Context) (int64, error) {
	key := fmt.Sprintf("pixabay:rpm:%d", time.Now().Unix()/60)
	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

const breakerKey = "pixabay:block_until_epoch"

// BlockUntil opens the circuit breaker until the given time.
func (c *ImageCache) BlockUntil(ctx context.Context, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, breakerKey, until.Unix(), ttl).Err()
}

// Blocked reports whether the breaker is currently open.
func (c *ImageCache) Blocked(ctx context.Context) (bool, error) {
	err := c.rdb.Get(ctx, breakerKey).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Kickstart flags suppress background polling for a user while an
// on-demand ingest is in flight.
type Kickstart struct {
	rdb *redis.Client
}

// NewKickstart creates a Kickstart on the given Redis client.
func NewKickstart(rdb *redis.Client) *Kickstart {
	return &Kickstart{rdb: rdb}
}

func kickstartKey(userID string) string {
	return "kickstart_active:" + userID
}

// Activate sets the flag for the user with a 5 minute expiry.
func (k *Kickstart) Activate(ctx context.Context, userID string) error {
	return k.rdb.Set(ctx, kickstartKey(userID), "1", 5*time.Minute).Err()
}

// Clear removes the flag for the user.
func (k *Kickstart) Clear(ctx context.Context, userID string) error {
	return k.rdb.Del(ctx, kickstartKey(userID)).Err()
}

// Active reports whether the flag is set for the user.
func (k *Kickstart) Active(ctx context.Context, userID string) (bool, error) {
	err := k.rdb.Get(ctx, kickstartKey(userID)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
