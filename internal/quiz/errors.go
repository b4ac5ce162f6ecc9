package quiz

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable marks infrastructure-level persistence failures,
// distinct from validation failures. Safe for clients to retry at their own
// discretion; never retried here.
var ErrStorageUnavailable = errors.New("storage unavailable")

// InvalidRequestError reports a rejected request field.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// RateLimitedError reports a generation attempt inside the cooldown window.
type RateLimitedError struct {
	RetryAfterSeconds int
	Message           string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %ds", e.RetryAfterSeconds)
}

// PersistenceError reports a failure to persist a generated quiz after the
// compensating rollback has run.
type PersistenceError struct {
	QuizID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist quiz %s: %v", e.QuizID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
