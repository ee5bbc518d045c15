package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a single-holder mutual exclusion key. Only one ingestor may
// poll at a time; a second instance exits cleanly when Acquire fails.
type Lock struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	token string
}

// NewLock creates a Lock for key with the given TTL. The token identifies
// this holder so Release never removes another holder's lock.
func NewLock(rdb *redis.Client, key string, ttl time.Duration, token string) *Lock {
	return &Lock{rdb: rdb, key: key, ttl: ttl, token: token}
}

// Acquire attempts to take the lock. Returns false without error when the
// lock is already held.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Refresh extends the TTL while this holder still owns the lock.
func (l *Lock) Refresh(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil || !held {
		return err
	}
	return l.rdb.Expire(ctx, l.key, l.ttl).Err()
}

// Release drops the lock if this holder still owns it. Best effort: the
// TTL reclaims the lock anyway if the process dies first.
func (l *Lock) Release(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil || !held {
		return err
	}
	return l.rdb.Del(ctx, l.key).Err()
}

func (l *Lock) holds(ctx context.Context) (bool, error) {
	val, err := l.rdb.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == l.token, nil
}
