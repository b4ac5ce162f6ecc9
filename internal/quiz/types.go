package quiz

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Generation source tags returned to clients.
const (
	SourceCache     = "cache"
	SourceGenerated = "generated"
)

// Defaults applied by the validator.
const (
	DefaultFocus = "General Knowledge"
	SafeTopic    = "General Science"

	TopicMaxLen          = 50
	DefaultQuestionCount = 5
)

// SupportedCounts are the discrete question counts a quiz may have.
var SupportedCounts = []int{5, 10, 15, 20}

// GenerationInput is the raw, untrusted request payload.
type GenerationInput struct {
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	UserFocus     string `json:"userFocus"`
	QuestionCount int    `json:"questionCount"`
}

// GenerationRequest is a validated, normalized request. Constructed once per
// call by the validator and immutable afterwards.
type GenerationRequest struct {
	Topic         string
	Difficulty    string
	Focus         string
	QuestionCount int
	CallerID      uuid.UUID
}

// Quiz is a generated session owned by a caller.
type Quiz struct {
	ID         uuid.UUID
	Topic      string
	Difficulty string
	OwnerID    uuid.UUID
	CreatedAt  time.Time
}

// Question is the single internal question representation. The parser
// normalizes every accepted external shape into this type before validation
// or persistence.
type Question struct {
	ID           uuid.UUID
	QuizID       uuid.UUID
	Text         string
	Options      []string
	CorrectIndex int
	Difficulty   string
	Topic        string
	Explanation  string
}

// Result is the orchestrator's successful outcome.
type Result struct {
	Quiz      Quiz
	Questions []Question
	Source    string
}
