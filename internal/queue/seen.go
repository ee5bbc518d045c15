package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenTTL = 24 * time.Hour

// SeenSets tracks which Gmail ids were recently enqueued, per user and
// globally. Entries expire so a crashed worker cannot shadow an id forever.
type SeenSets struct {
	rdb *redis.Client
}

// NewSeenSets creates a SeenSets on the given Redis client.
func NewSeenSets(rdb *redis.Client) *SeenSets {
	return &SeenSets{rdb: rdb}
}

func userSeenKey(userID string) string {
	return fmt.Sprintf("ingestor:queued:%s", userID)
}

const globalSeenKey = "ingestor:seen_global"

func globalMember(userID, emailID string) string {
	return userID + ":" + emailID
}

// Mark records the id in both the per-user and global sets and refreshes
// their TTLs.
func (s *SeenSets) Mark(ctx context.Context, userID, emailID string) error {
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, userSeenKey(userID), emailID)
	pipe.Expire(ctx, userSeenKey(userID), seenTTL)
	pipe.SAdd(ctx, globalSeenKey, globalMember(userID, emailID))
	pipe.Expire(ctx, globalSeenKey, seenTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// IsSeen reports whether the id was marked in either set.
func (s *SeenSets) IsSeen(ctx context.Context, userID, emailID string) (bool, error) {
	perUser, err := s.rdb.SIsMember(ctx, userSeenKey(userID), emailID).Result()
	if err != nil {
		return false, err
	}
	if perUser {
		return true, nil
	}
	return s.rdb.SIsMember(ctx, globalSeenKey, globalMember(userID, emailID)).Result()
}
