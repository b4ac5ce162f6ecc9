package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type memCooldownStore struct {
	entries map[uuid.UUID]time.Time
	getErr  error
	setErr  error
}

func newMemCooldownStore() *memCooldownStore {
	return &memCooldownStore{entries: map[uuid.UUID]time.Time{}}
}

func (s *memCooldownStore) LastGeneratedAt(_ context.Context, callerID uuid.UUID) (time.Time, bool, error) {
	if s.getErr != nil {
		return time.Time{}, false, s.getErr
	}
	at, ok := s.entries[callerID]
	return at, ok, nil
}

func (s *memCooldownStore) SetLastGeneratedAt(_ context.Context, callerID uuid.UUID, at time.Time) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[callerID] = at
	return nil
}

func TestRateLimiterAllowsFirstGeneration(t *testing.T) {
	limiter := NewRateLimiter(newMemCooldownStore(), time.Minute)

	result, err := limiter.Check(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterBlocksInsideWindow(t *testing.T) {
	store := newMemCooldownStore()
	limiter := NewRateLimiter(store, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	callerID := uuid.New()
	store.entries[callerID] = now.Add(-20 * time.Second)

	result, err := limiter.Check(context.Background(), callerID)
	assert.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 40, result.RetryAfterSeconds)
	assert.NotEmpty(t, result.Message)
}

func TestRateLimiterRoundsRetryAfterUp(t *testing.T) {
	store := newMemCooldownStore()
	limiter := NewRateLimiter(store, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	callerID := uuid.New()
	store.entries[callerID] = now.Add(-19500 * time.Millisecond)

	result, err := limiter.Check(context.Background(), callerID)
	assert.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 41, result.RetryAfterSeconds)
}

func TestRateLimiterAllowsAfterWindow(t *testing.T) {
	store := newMemCooldownStore()
	limiter := NewRateLimiter(store, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	callerID := uuid.New()
	store.entries[callerID] = now.Add(-time.Minute)

	result, err := limiter.Check(context.Background(), callerID)
	assert.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterMessageBucketsAreDeterministic(t *testing.T) {
	store := newMemCooldownStore()
	limiter := NewRateLimiter(store, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	callerID := uuid.New()
	messages := map[int]string{}
	for _, remaining := range []int{50, 40, 20, 5} {
		store.entries[callerID] = now.Add(time.Duration(remaining-60) * time.Second)
		result, err := limiter.Check(context.Background(), callerID)
		assert.NoError(t, err)
		assert.False(t, result.Allowed)
		messages[remaining] = result.Message
		assert.Equal(t, result.Message, waitMessage(result.RetryAfterSeconds))
	}

	// All four buckets produce distinct lines.
	seen := map[string]bool{}
	for _, msg := range messages {
		seen[msg] = true
	}
	assert.Len(t, seen, 4)
}

func TestRateLimiterReserveWritesTimestamp(t *testing.T) {
	store := newMemCooldownStore()
	limiter := NewRateLimiter(store, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	callerID := uuid.New()
	assert.NoError(t, limiter.Reserve(context.Background(), callerID))
	assert.Equal(t, now, store.entries[callerID])
}

func TestRateLimiterWrapsStoreFailure(t *testing.T) {
	store := newMemCooldownStore()
	store.getErr = assert.AnError
	limiter := NewRateLimiter(store, time.Minute)

	_, err := limiter.Check(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
