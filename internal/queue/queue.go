package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/retry"
)

const queueKey = "email_queue"

// ErrQueueEmpty is returned by BPop when the timeout elapses with no entry.
var ErrQueueEmpty = errors.New("queue empty")

// Queue is the shared FIFO work list between ingestor and worker.
// Delivery is at-least-once; consumers must tolerate replays.
type Queue struct {
	rdb *redis.Client
}

// NewQueue creates a Queue on the given Redis client.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Push enqueues an entry with a bounded retry. Callers tracking seen
// sets should mark them only after Push succeeds, so a failed push
// leaves nothing shadowed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: work item to enqueue.
// Returns:
//   - error: non-nil if the push failed after all attempts.
func (q *Queue) Push(ctx context.Context, entry domain.QueueEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode queue entry: %w", err)
	}
	policy := retry.Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.2}
	return retry.Do(ctx, policy, func(error) bool { return true }, func() error {
		return q.rdb.RPush(ctx, queueKey, payload).Err()
	})
}

// BPop blocks up to timeout waiting for the next entry. A bounded timeout
// keeps the worker loop responsive to shutdown.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - timeout: maximum block duration.
// Returns:
//   - *domain.QueueEntry: dequeued entry.
//   - error: ErrQueueEmpty on timeout, other errors on failure.
func (q *Queue) BPop(ctx context.Context, timeout time.Duration) (*domain.QueueEntry, error) {
	res, err := q.rdb.BLPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to pop queue: %w", err)
	}
	// BLPop returns [key, value]
	if len(res) < 2 {
		return nil, ErrQueueEmpty
	}
	var entry domain.QueueEntry
	if err := json.Unmarshal([]byte(res[1]), &entry); err != nil {
		// Malformed payloads are dropped, not retried forever.
		return nil, fmt.Errorf("failed to decode queue entry: %w", err)
	}
	return &entry, nil
}

// Len returns the current queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, queueKey).Result()
}
