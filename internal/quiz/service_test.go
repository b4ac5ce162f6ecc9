package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/quizgen/internal/genai"
	"github.com/prepstack/quizgen/internal/metrics"
)

type stubStore struct {
	reusable   *Quiz
	reusableQs []Question
	unseen     []Question

	findQuizErr   error
	findUnseenErr error
	createErr     error
	saveErr       error
	linkErr       error

	unseenLimit int
	created     []Quiz
	saved       map[uuid.UUID][]Question
	linked      map[uuid.UUID][]uuid.UUID
	deleted     []uuid.UUID
	seen        map[uuid.UUID][]uuid.UUID
}

func newStubStore() *stubStore {
	return &stubStore{
		saved:  map[uuid.UUID][]Question{},
		linked: map[uuid.UUID][]uuid.UUID{},
		seen:   map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *stubStore) FindReusableQuiz(_ context.Context, topic, difficulty string, callerID uuid.UUID) (*Quiz, []Question, error) {
	if s.findQuizErr != nil {
		return nil, nil, s.findQuizErr
	}
	return s.reusable, s.reusableQs, nil
}

func (s *stubStore) FindUnseenQuestions(_ context.Context, topic, difficulty string, callerID uuid.UUID, limit int) ([]Question, error) {
	s.unseenLimit = limit
	if s.findUnseenErr != nil {
		return nil, s.findUnseenErr
	}
	if len(s.unseen) > limit {
		return s.unseen[:limit], nil
	}
	return s.unseen, nil
}

func (s *stubStore) CreateQuiz(_ context.Context, qz Quiz) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, qz)
	return nil
}

func (s *stubStore) SaveGeneratedQuestions(_ context.Context, quizID uuid.UUID, questions []Question) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[quizID] = questions
	return nil
}

func (s *stubStore) LinkQuestions(_ context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	s.linked[quizID] = questionIDs
	return nil
}

func (s *stubStore) DeleteQuiz(_ context.Context, quizID uuid.UUID) error {
	s.deleted = append(s.deleted, quizID)
	return nil
}

func (s *stubStore) MarkSeen(_ context.Context, callerID uuid.UUID, questionIDs []uuid.UUID) error {
	s.seen[callerID] = append(s.seen[callerID], questionIDs...)
	return nil
}

type stubModel struct {
	calls int
	raw   string
	err   error
}

func (m *stubModel) Generate(_ context.Context, system, user string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.raw, nil
}

func modelBatch(n int) string {
	type item struct {
		Question     string   `json:"question"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correctIndex"`
		Difficulty   string   `json:"difficulty"`
		Explanation  string   `json:"explanation"`
	}
	items := make([]item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, item{
			Question:     fmt.Sprintf("Question %d?", i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 4,
			Difficulty:   "easy",
		})
	}
	body, _ := json.Marshal(map[string]any{"questions": items})
	return string(body)
}

func bankQuestions(n int) []Question {
	questions := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, Question{
			ID:           uuid.New(),
			Text:         fmt.Sprintf("Bank question %d?", i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: 0,
			Difficulty:   DifficultyEasy,
			Topic:        "Algebra",
		})
	}
	return questions
}

func newTestService(store *stubStore, cooldowns *memCooldownStore, model *stubModel) *Service {
	limiter := NewRateLimiter(cooldowns, time.Minute)
	m := metrics.New(prometheus.NewRegistry())
	var gen genai.TextGenerator
	if model != nil {
		gen = model
	}
	return NewService(store, limiter, gen, m, zerolog.Nop())
}

func validInput() GenerationInput {
	return GenerationInput{
		Topic:         "Algebra",
		Difficulty:    "easy",
		UserFocus:     "SSC",
		QuestionCount: 5,
	}
}

func TestGenerateServesCachedQuizWithoutModelCall(t *testing.T) {
	store := newStubStore()
	callerID := uuid.New()
	quizID := uuid.New()
	store.reusable = &Quiz{ID: quizID, Topic: "Algebra", Difficulty: DifficultyEasy, OwnerID: uuid.New(), CreatedAt: time.Now()}
	store.reusableQs = bankQuestions(5)

	model := &stubModel{raw: modelBatch(5)}
	cooldowns := newMemCooldownStore()
	svc := newTestService(store, cooldowns, model)

	result, err := svc.Generate(context.Background(), callerID, validInput())
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, quizID, result.Quiz.ID)
	assert.Len(t, result.Questions, 5)
	assert.Zero(t, model.calls, "cache hit must not invoke the model")

	assert.Len(t, store.seen[callerID], 5, "served questions should be marked seen")
	_, reserved := cooldowns.entries[callerID]
	assert.True(t, reserved, "cooldown should be reserved after success")
}

func TestGenerateSkipsCachedQuizWithWrongCount(t *testing.T) {
	store := newStubStore()
	store.reusable = &Quiz{ID: uuid.New(), Topic: "Algebra", Difficulty: DifficultyEasy}
	store.reusableQs = bankQuestions(10)
	store.unseen = bankQuestions(5)

	svc := newTestService(store, newMemCooldownStore(), nil)

	result, err := svc.Generate(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, result.Source)
	assert.Len(t, result.Questions, 5)
}

func TestGenerateInstantPlayExactCount(t *testing.T) {
	store := newStubStore()
	store.unseen = bankQuestions(5)

	model := &stubModel{raw: modelBatch(5)}
	cooldowns := newMemCooldownStore()
	callerID := uuid.New()
	svc := newTestService(store, cooldowns, model)

	result, err := svc.Generate(context.Background(), callerID, validInput())
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, result.Source)
	assert.Len(t, result.Questions, 5)
	assert.Zero(t, model.calls, "instant play must not invoke the model")

	require.Len(t, store.created, 1)
	assert.Len(t, store.linked[store.created[0].ID], 5)
	for _, q := range result.Questions {
		assert.Equal(t, store.created[0].ID, q.QuizID)
	}
	_, reserved := cooldowns.entries[callerID]
	assert.True(t, reserved)
}

func TestGenerateInstantPlayInsufficientFallsToModel(t *testing.T) {
	store := newStubStore()
	store.unseen = bankQuestions(3)

	model := &stubModel{raw: modelBatch(5)}
	svc := newTestService(store, newMemCooldownStore(), model)

	result, err := svc.Generate(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, result.Source)
	assert.Equal(t, 1, model.calls, "model invoked exactly once")
	assert.Len(t, result.Questions, 5)
	assert.Equal(t, 5, store.unseenLimit)

	require.Len(t, store.created, 1)
	assert.Len(t, store.saved[store.created[0].ID], 5)
}

func TestGenerateTrimsExtraModelQuestions(t *testing.T) {
	store := newStubStore()
	model := &stubModel{raw: modelBatch(8)}
	svc := newTestService(store, newMemCooldownStore(), model)

	result, err := svc.Generate(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)
	assert.Len(t, result.Questions, 5)
}

func TestGenerateFailsOnModelShortfallWithoutPersisting(t *testing.T) {
	store := newStubStore()
	model := &stubModel{raw: modelBatch(3)}
	cooldowns := newMemCooldownStore()
	callerID := uuid.New()
	svc := newTestService(store, cooldowns, model)

	_, err := svc.Generate(context.Background(), callerID, validInput())

	var parseErr *genai.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, genai.KindInvalidShape, parseErr.Kind)
	assert.Empty(t, store.created, "nothing persists when output validation fails")
	_, reserved := cooldowns.entries[callerID]
	assert.False(t, reserved, "failed generation must not consume the cooldown")
}

func TestGenerateFailsOnUnparseableOutputWithoutPersisting(t *testing.T) {
	store := newStubStore()
	model := &stubModel{raw: "the model rambled instead of emitting JSON {{"}
	svc := newTestService(store, newMemCooldownStore(), model)

	_, err := svc.Generate(context.Background(), uuid.New(), validInput())

	var parseErr *genai.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, genai.KindMalformed, parseErr.Kind)
	assert.Empty(t, store.created)
	assert.Empty(t, store.saved)
}

func TestGenerateRollsBackQuizOnPersistFailure(t *testing.T) {
	store := newStubStore()
	store.saveErr = errors.New("insert failed")
	model := &stubModel{raw: modelBatch(5)}
	cooldowns := newMemCooldownStore()
	callerID := uuid.New()
	svc := newTestService(store, cooldowns, model)

	_, err := svc.Generate(context.Background(), callerID, validInput())

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	require.Len(t, store.created, 1)
	require.Len(t, store.deleted, 1)
	assert.Equal(t, store.created[0].ID, store.deleted[0], "quiz row must be rolled back")
	_, reserved := cooldowns.entries[callerID]
	assert.False(t, reserved)
}

func TestGenerateRollsBackQuizOnLinkFailure(t *testing.T) {
	store := newStubStore()
	store.unseen = bankQuestions(5)
	store.linkErr = errors.New("link failed")
	svc := newTestService(store, newMemCooldownStore(), nil)

	_, err := svc.Generate(context.Background(), uuid.New(), validInput())

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	require.Len(t, store.created, 1)
	require.Len(t, store.deleted, 1)
	assert.Equal(t, store.created[0].ID, store.deleted[0])
}

func TestGenerateSecondCallWithinCooldownIsRateLimited(t *testing.T) {
	store := newStubStore()
	store.unseen = bankQuestions(5)
	cooldowns := newMemCooldownStore()
	callerID := uuid.New()
	svc := newTestService(store, cooldowns, nil)

	_, err := svc.Generate(context.Background(), callerID, validInput())
	require.NoError(t, err)

	store.unseen = bankQuestions(5)
	_, err = svc.Generate(context.Background(), callerID, validInput())

	var limitedErr *RateLimitedError
	require.ErrorAs(t, err, &limitedErr)
	assert.Greater(t, limitedErr.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, limitedErr.RetryAfterSeconds, 60)
	assert.NotEmpty(t, limitedErr.Message)
}

func TestGenerateMapsStorageFailure(t *testing.T) {
	store := newStubStore()
	store.findQuizErr = errors.New("db down")
	svc := newTestService(store, newMemCooldownStore(), nil)

	_, err := svc.Generate(context.Background(), uuid.New(), validInput())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestGenerateWithoutModelBackendFails(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, newMemCooldownStore(), nil)

	_, err := svc.Generate(context.Background(), uuid.New(), validInput())
	assert.ErrorIs(t, err, genai.ErrModelUnavailable)
}

func TestGenerateCoercesUnsupportedQuestionCount(t *testing.T) {
	store := newStubStore()
	store.unseen = bankQuestions(5)
	svc := newTestService(store, newMemCooldownStore(), nil)

	input := validInput()
	input.QuestionCount = 7

	result, err := svc.Generate(context.Background(), uuid.New(), input)
	require.NoError(t, err)
	assert.Equal(t, 5, store.unseenLimit, "count 7 coerces to the default of 5")
	assert.Len(t, result.Questions, 5)
}

func TestGeneratePropagatesModelFailure(t *testing.T) {
	store := newStubStore()
	model := &stubModel{err: fmt.Errorf("%w: connection refused", genai.ErrModelUnavailable)}
	svc := newTestService(store, newMemCooldownStore(), model)

	_, err := svc.Generate(context.Background(), uuid.New(), validInput())
	assert.ErrorIs(t, err, genai.ErrModelUnavailable)
	assert.Equal(t, 1, model.calls)
}
