package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepstack/quizgen/internal/genai"
	"github.com/prepstack/quizgen/internal/metrics"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	FindReusableQuiz(ctx context.Context, topic, difficulty string, callerID uuid.UUID) (*Quiz, []Question, error)
	FindUnseenQuestions(ctx context.Context, topic, difficulty string, callerID uuid.UUID, limit int) ([]Question, error)
	CreateQuiz(ctx context.Context, qz Quiz) error
	SaveGeneratedQuestions(ctx context.Context, quizID uuid.UUID, questions []Question) error
	LinkQuestions(ctx context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) error
	DeleteQuiz(ctx context.Context, quizID uuid.UUID) error
	MarkSeen(ctx context.Context, callerID uuid.UUID, questionIDs []uuid.UUID) error
}

// Service sequences validation, rate limiting, the three-tier question
// strategy and persistence into the end-to-end generate-quiz flow.
// Nothing here retries automatically; every failure is terminal for the
// request.
type Service struct {
	store   Store
	limiter *RateLimiter
	model   genai.TextGenerator
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService wires the orchestrator. model may be nil when no AI backend is
// configured; the AI tier then fails with ErrModelUnavailable.
func NewService(store Store, limiter *RateLimiter, model genai.TextGenerator, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		limiter: limiter,
		model:   model,
		metrics: m,
		logger:  logger.With().Str("component", "quiz_service").Logger(),
		now:     time.Now,
	}
}

// Generate runs the full flow for one caller request: reuse an unattempted
// cached quiz, serve unseen questions as instant play, or fall back to AI
// generation.
func (s *Service) Generate(ctx context.Context, callerID uuid.UUID, in GenerationInput) (*Result, error) {
	req, err := ValidateRequest(in, callerID)
	if err != nil {
		s.fail("invalid_request")
		return nil, err
	}

	check, err := s.limiter.Check(ctx, req.CallerID)
	if err != nil {
		s.fail("storage")
		return nil, err
	}
	if !check.Allowed {
		s.fail("rate_limited")
		return nil, &RateLimitedError{
			RetryAfterSeconds: check.RetryAfterSeconds,
			Message:           check.Message,
		}
	}

	if result, err := s.tryCachedQuiz(ctx, req); err != nil || result != nil {
		return result, err
	}
	if result, err := s.tryInstantPlay(ctx, req); err != nil || result != nil {
		return result, err
	}
	return s.generateWithModel(ctx, req)
}

// tryCachedQuiz serves the newest unattempted quiz for the same topic and
// difficulty. A cached quiz with a different question count than requested
// is skipped so the exact-count invariant holds.
func (s *Service) tryCachedQuiz(ctx context.Context, req GenerationRequest) (*Result, error) {
	qz, questions, err := s.store.FindReusableQuiz(ctx, req.Topic, req.Difficulty, req.CallerID)
	if err != nil {
		s.fail("storage")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if qz == nil || len(questions) != req.QuestionCount {
		return nil, nil
	}

	s.logger.Info().
		Str("quiz_id", qz.ID.String()).
		Str("topic", req.Topic).
		Msg("serving reusable cached quiz")
	return s.finish(ctx, req, *qz, questions, SourceCache), nil
}

// tryInstantPlay builds a new quiz from previously generated, not-yet-seen
// bank questions. Only an exact-count hit qualifies; anything less falls
// through to the model.
func (s *Service) tryInstantPlay(ctx context.Context, req GenerationRequest) (*Result, error) {
	unseen, err := s.store.FindUnseenQuestions(ctx, req.Topic, req.Difficulty, req.CallerID, req.QuestionCount)
	if err != nil {
		s.fail("storage")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(unseen) != req.QuestionCount {
		return nil, nil
	}

	qz := s.newQuiz(req)
	if err := s.store.CreateQuiz(ctx, qz); err != nil {
		s.fail("storage")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	ids := questionIDs(unseen)
	if err := s.store.LinkQuestions(ctx, qz.ID, ids); err != nil {
		s.rollbackQuiz(ctx, qz.ID)
		s.fail("persistence")
		return nil, &PersistenceError{QuizID: qz.ID.String(), Err: err}
	}

	for i := range unseen {
		unseen[i].QuizID = qz.ID
	}
	s.logger.Info().
		Str("quiz_id", qz.ID.String()).
		Str("topic", req.Topic).
		Int("count", len(unseen)).
		Msg("serving instant-play quiz from question bank")
	return s.finish(ctx, req, qz, unseen, SourceGenerated), nil
}

// generateWithModel runs the AI tier: prompt, single model call, parse with
// repair, persist with compensating rollback.
func (s *Service) generateWithModel(ctx context.Context, req GenerationRequest) (*Result, error) {
	if s.model == nil {
		s.fail("model")
		return nil, fmt.Errorf("%w: no backend configured", genai.ErrModelUnavailable)
	}

	system, user := genai.BuildPrompt(req.Topic, req.Difficulty, req.Focus, req.QuestionCount)

	start := s.now()
	raw, err := s.model.Generate(ctx, system, user)
	s.metrics.ModelLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail("model")
		return nil, err
	}

	parsed, err := genai.ParseQuestions(raw)
	if err != nil {
		s.fail("parse")
		return nil, err
	}
	if len(parsed) < req.QuestionCount {
		s.fail("parse")
		return nil, &genai.ParseError{
			Kind:   genai.KindInvalidShape,
			Detail: fmt.Sprintf("model returned %d of %d questions", len(parsed), req.QuestionCount),
		}
	}
	parsed = parsed[:req.QuestionCount]

	qz := s.newQuiz(req)
	questions := make([]Question, 0, len(parsed))
	for _, p := range parsed {
		difficulty := p.Difficulty
		if difficulty == "" {
			difficulty = req.Difficulty
		}
		questions = append(questions, Question{
			ID:           uuid.New(),
			QuizID:       qz.ID,
			Text:         p.Text,
			Options:      p.Options,
			CorrectIndex: p.CorrectIndex,
			Difficulty:   difficulty,
			Topic:        req.Topic,
			Explanation:  p.Explanation,
		})
	}

	if err := s.store.CreateQuiz(ctx, qz); err != nil {
		s.fail("storage")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.store.SaveGeneratedQuestions(ctx, qz.ID, questions); err != nil {
		s.rollbackQuiz(ctx, qz.ID)
		s.fail("persistence")
		return nil, &PersistenceError{QuizID: qz.ID.String(), Err: err}
	}

	s.logger.Info().
		Str("quiz_id", qz.ID.String()).
		Str("topic", req.Topic).
		Int("count", len(questions)).
		Msg("persisted AI-generated quiz")
	return s.finish(ctx, req, qz, questions, SourceGenerated), nil
}

// finish runs the post-success side effects. Seen-marking and the cooldown
// reserve are best-effort: the quiz is already persisted and a response the
// caller can render matters more than either bookkeeping write.
func (s *Service) finish(ctx context.Context, req GenerationRequest, qz Quiz, questions []Question, source string) *Result {
	if err := s.store.MarkSeen(ctx, req.CallerID, questionIDs(questions)); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", qz.ID.String()).Msg("failed to mark questions seen")
	}
	if err := s.limiter.Reserve(ctx, req.CallerID); err != nil {
		s.logger.Warn().Err(err).Str("caller_id", req.CallerID.String()).Msg("failed to reserve cooldown")
	}
	s.metrics.GenerationsTotal.WithLabelValues(source).Inc()
	return &Result{Quiz: qz, Questions: questions, Source: source}
}

func (s *Service) rollbackQuiz(ctx context.Context, quizID uuid.UUID) {
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		// Rollback failure leaves an empty quiz row behind; surfaced in
		// logs for cleanup rather than masking the original failure.
		s.logger.Error().Err(err).Str("quiz_id", quizID.String()).Msg("compensating quiz rollback failed")
	}
}

func (s *Service) newQuiz(req GenerationRequest) Quiz {
	return Quiz{
		ID:         uuid.New(),
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		OwnerID:    req.CallerID,
		CreatedAt:  s.now(),
	}
}

func (s *Service) fail(reason string) {
	s.metrics.GenerationFailures.WithLabelValues(reason).Inc()
}

func questionIDs(questions []Question) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}
