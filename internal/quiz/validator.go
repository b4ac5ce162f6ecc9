package quiz

import (
	"strings"

	"github.com/google/uuid"
)

// topicDenylist holds instruction-injection markers. A topic containing any
// of these (case-insensitive) is silently replaced with SafeTopic rather
// than rejected, so the prompt stays clean without breaking the client flow.
var topicDenylist = []string{
	"ignore previous",
	"ignore all previous",
	"disregard",
	"system prompt",
	"instructions",
	"jailbreak",
	"pretend you are",
	"act as",
}

// ValidateRequest normalizes and validates a raw payload into an immutable
// GenerationRequest. Pure: no side effects, no clock, no I/O.
func ValidateRequest(in GenerationInput, callerID uuid.UUID) (GenerationRequest, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return GenerationRequest{}, &InvalidRequestError{Field: "topic", Reason: "is required"}
	}
	if len(topic) > TopicMaxLen {
		return GenerationRequest{}, &InvalidRequestError{Field: "topic", Reason: "exceeds 50 characters"}
	}
	topic = sanitizeTopic(topic)

	difficulty := strings.ToLower(strings.TrimSpace(in.Difficulty))
	if difficulty == "" {
		return GenerationRequest{}, &InvalidRequestError{Field: "difficulty", Reason: "is required"}
	}
	switch difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return GenerationRequest{}, &InvalidRequestError{Field: "difficulty", Reason: "must be one of easy, medium, hard"}
	}

	focus := strings.TrimSpace(in.UserFocus)
	if focus == "" {
		focus = DefaultFocus
	}

	return GenerationRequest{
		Topic:         topic,
		Difficulty:    difficulty,
		Focus:         focus,
		QuestionCount: clampCount(in.QuestionCount),
		CallerID:      callerID,
	}, nil
}

func sanitizeTopic(topic string) string {
	lowered := strings.ToLower(topic)
	for _, term := range topicDenylist {
		if strings.Contains(lowered, term) {
			return SafeTopic
		}
	}
	return topic
}

// clampCount snaps the requested count to the nearest supported value, ties
// rounding down. Absent or non-positive counts get the default.
func clampCount(count int) int {
	if count <= 0 {
		return DefaultQuestionCount
	}
	best := SupportedCounts[0]
	bestDist := abs(count - best)
	for _, c := range SupportedCounts[1:] {
		if d := abs(count - c); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
