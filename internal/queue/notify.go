package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes and subscribes job progress over Redis pub/sub so
// the worker and the API can live in different processes.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier on the given Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func updateChannel(jobID string) string {
	return "jobs:update:" + jobID
}

// ProgressPattern matches every job's progress channel for PSubscribe.
const ProgressPattern = "jobs:progress:*"

func progressChannel(jobID string) string {
	return "jobs:progress:" + jobID
}

// JobIDFromProgressChannel recovers the job id from a progress channel name.
func JobIDFromProgressChannel(channel string) string {
	const prefix = "jobs:progress:"
	if len(channel) > len(prefix) && channel[:len(prefix)] == prefix {
		return channel[len(prefix):]
	}
	return ""
}

// ItemUpdate announces that one email finished processing for a job.
type ItemUpdate struct {
	EmailID string `json:"email_id"`
	UserID  string `json:"user_id"`
	Failed  bool   `json:"failed,omitempty"`
}

// PublishUpdate sends a per-item update on the job's update channel.
// Dropped messages are fine; SSE consumers treat updates as hints.
func (n *Notifier) PublishUpdate(ctx context.Context, jobID string, update ItemUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	return n.rdb.Publish(ctx, updateChannel(jobID), payload).Err()
}

// Progress payloads: "ok" counts toward done, "err" also bumps the
// job's error counter.
const (
	ProgressOK     = "ok"
	ProgressFailed = "err"
)

// PublishProgress ticks the job's progress counter channel.
func (n *Notifier) PublishProgress(ctx context.Context, jobID string, failed bool) error {
	payload := ProgressOK
	if failed {
		payload = ProgressFailed
	}
	return n.rdb.Publish(ctx, progressChannel(jobID), payload).Err()
}

// SubscribeUpdates subscribes to one job's update channel.
func (n *Notifier) SubscribeUpdates(ctx context.Context, jobID string) *redis.PubSub {
	return n.rdb.Subscribe(ctx, updateChannel(jobID))
}

// SubscribeProgress pattern-subscribes to every job's progress channel.
func (n *Notifier) SubscribeProgress(ctx context.Context) *redis.PubSub {
	return n.rdb.PSubscribe(ctx, ProgressPattern)
}
