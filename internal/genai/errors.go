package genai

import "errors"

// Model-call failure classes. All are terminal for the request; nothing in
// this package retries automatically.
var (
	// ErrModelUnavailable marks transport-level failures (connect, timeout).
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelError marks non-success responses from the model backend.
	ErrModelError = errors.New("model error")
	// ErrEmptyResponse marks a successful call that carried no text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Parse failure kinds.
const (
	KindMalformed    = "malformed"
	KindInvalidShape = "invalid_shape"
)

// ParseError reports an unusable model payload with enough diagnostic
// detail to tell truncation from corruption in logs. Never retry-safe.
type ParseError struct {
	Kind           string
	Offset         int64
	BraceBalance   int
	BracketBalance int
	Detail         string
}

func (e *ParseError) Error() string {
	return "parse model output: " + e.Kind + ": " + e.Detail
}
