package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CooldownStore persists per-caller last-generation timestamps. Kept outside
// process memory so the cooldown holds across restarts and replicas.
type CooldownStore interface {
	LastGeneratedAt(ctx context.Context, callerID uuid.UUID) (time.Time, bool, error)
	SetLastGeneratedAt(ctx context.Context, callerID uuid.UUID, at time.Time) error
}

// CheckResult is the outcome of a rate-limit check.
type CheckResult struct {
	Allowed           bool
	RetryAfterSeconds int
	Message           string
}

// RateLimiter enforces the minimum interval between a caller's successful
// generations. The reserve write happens only after a generation path
// succeeds, so failed generations do not consume the cooldown.
//
// Check-then-reserve is not atomic: two near-simultaneous requests from the
// same caller can both pass the check. The cooldown is a UX nicety, not a
// security control, so the race is accepted.
type RateLimiter struct {
	store  CooldownStore
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter builds a limiter with the given cooldown window.
func NewRateLimiter(store CooldownStore, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &RateLimiter{store: store, window: window, now: time.Now}
}

// Check reads the caller's last generation timestamp and reports whether a
// new generation is allowed, with a wait hint when it is not.
func (l *RateLimiter) Check(ctx context.Context, callerID uuid.UUID) (CheckResult, error) {
	last, found, err := l.store.LastGeneratedAt(ctx, callerID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("%w: read cooldown: %v", ErrStorageUnavailable, err)
	}
	if !found {
		return CheckResult{Allowed: true}, nil
	}

	elapsed := l.now().Sub(last)
	if elapsed >= l.window {
		return CheckResult{Allowed: true}, nil
	}

	remaining := l.window - elapsed
	secs := int(remaining / time.Second)
	if remaining%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return CheckResult{
		RetryAfterSeconds: secs,
		Message:           waitMessage(secs),
	}, nil
}

// Reserve records the caller's generation timestamp. Idempotent: writing the
// same instant twice is harmless.
func (l *RateLimiter) Reserve(ctx context.Context, callerID uuid.UUID) error {
	if err := l.store.SetLastGeneratedAt(ctx, callerID, l.now()); err != nil {
		return fmt.Errorf("%w: write cooldown: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// waitMessage picks a deterministic encouragement line per remaining-wait
// bucket. Cosmetic, but stable for tests.
func waitMessage(remainingSeconds int) string {
	switch {
	case remainingSeconds > 45:
		return "Fresh quizzes take a moment to brew. Review your last attempt while you wait!"
	case remainingSeconds > 30:
		return "Almost there! Use this break to revisit the explanations from your last quiz."
	case remainingSeconds > 15:
		return "Just a little longer. A short pause helps the material stick!"
	default:
		return "Nearly ready! Your next quiz unlocks in a few seconds."
	}
}
