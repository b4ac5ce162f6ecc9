package quiz

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "quizgen:cooldown:"

// RedisCooldownStore keeps last-generation timestamps in Redis so the
// cooldown survives restarts and is shared across replicas.
type RedisCooldownStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ CooldownStore = (*RedisCooldownStore)(nil)

// NewRedisCooldownStore builds a store whose entries expire after ttl.
// The ttl should comfortably exceed the cooldown window.
func NewRedisCooldownStore(client *redis.Client, ttl time.Duration) *RedisCooldownStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCooldownStore{client: client, ttl: ttl}
}

func cooldownKey(callerID uuid.UUID) string {
	return cooldownKeyPrefix + callerID.String()
}

func (s *RedisCooldownStore) LastGeneratedAt(ctx context.Context, callerID uuid.UUID) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, cooldownKey(callerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	unixMilli, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Corrupt entry; treat as absent rather than blocking the caller.
		return time.Time{}, false, nil
	}
	return time.UnixMilli(unixMilli), true, nil
}

func (s *RedisCooldownStore) SetLastGeneratedAt(ctx context.Context, callerID uuid.UUID, at time.Time) error {
	return s.client.Set(ctx, cooldownKey(callerID), strconv.FormatInt(at.UnixMilli(), 10), s.ttl).Err()
}
