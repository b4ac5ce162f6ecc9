package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack/quizgen/internal/quiz"
)

// QuizRepository provides Postgres access to the quiz, question bank, seen
// and attempt relations.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository constructs a repository over a pgx pool.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// FindReusableQuiz returns the newest quiz matching topic (case-insensitive
// exact match) and difficulty that the caller has not attempted, together
// with its ordered question set. Returns (nil, nil, nil) when none exists.
func (r *QuizRepository) FindReusableQuiz(ctx context.Context, topic, difficulty string, callerID uuid.UUID) (*quiz.Quiz, []quiz.Question, error) {
	const quizQuery = `
		SELECT q.quiz_id, q.topic, q.difficulty, q.owner_id, q.created_at
		FROM quizzes q
		WHERE lower(q.topic) = lower($1)
		  AND q.difficulty = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM quiz_attempts a
		      WHERE a.quiz_id = q.quiz_id AND a.user_id = $3
		  )
		ORDER BY q.created_at DESC
		LIMIT 1`

	var qz quiz.Quiz
	err := r.pool.QueryRow(ctx, quizQuery, topic, difficulty, callerID).
		Scan(&qz.ID, &qz.Topic, &qz.Difficulty, &qz.OwnerID, &qz.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("find reusable quiz: %w", err)
	}

	questions, err := r.questionsForQuiz(ctx, qz.ID)
	if err != nil {
		return nil, nil, err
	}
	return &qz, questions, nil
}

func (r *QuizRepository) questionsForQuiz(ctx context.Context, quizID uuid.UUID) ([]quiz.Question, error) {
	const query = `
		SELECT qu.question_id, qu.text, qu.options, qu.correct_index, qu.difficulty, qu.topic, qu.explanation
		FROM quiz_questions qq
		JOIN questions qu ON qu.question_id = qq.question_id
		WHERE qq.quiz_id = $1
		ORDER BY qq.position`

	rows, err := r.pool.Query(ctx, query, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	defer rows.Close()

	var questions []quiz.Question
	for rows.Next() {
		q := quiz.Question{QuizID: quizID}
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.CorrectIndex, &q.Difficulty, &q.Topic, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan quiz question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz questions: %w", err)
	}
	return questions, nil
}

// FindUnseenQuestions returns up to limit bank questions matching topic and
// difficulty that the caller has not been served before, in randomized order.
func (r *QuizRepository) FindUnseenQuestions(ctx context.Context, topic, difficulty string, callerID uuid.UUID, limit int) ([]quiz.Question, error) {
	const query = `
		SELECT qu.question_id, qu.text, qu.options, qu.correct_index, qu.difficulty, qu.topic, qu.explanation
		FROM questions qu
		WHERE lower(qu.topic) = lower($1)
		  AND qu.difficulty = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM seen_questions s
		      WHERE s.question_id = qu.question_id AND s.user_id = $3
		  )
		ORDER BY random()
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, topic, difficulty, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("find unseen questions: %w", err)
	}
	defer rows.Close()

	var questions []quiz.Question
	for rows.Next() {
		var q quiz.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.CorrectIndex, &q.Difficulty, &q.Topic, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan unseen question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unseen questions: %w", err)
	}
	return questions, nil
}

// CreateQuiz inserts a new quiz row.
func (r *QuizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) error {
	const query = `
		INSERT INTO quizzes (quiz_id, topic, difficulty, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, query, qz.ID, qz.Topic, qz.Difficulty, qz.OwnerID, qz.CreatedAt); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

// SaveGeneratedQuestions inserts freshly generated question rows and links
// them to the quiz in order.
func (r *QuizRepository) SaveGeneratedQuestions(ctx context.Context, quizID uuid.UUID, questions []quiz.Question) error {
	batch := &pgx.Batch{}
	for i, q := range questions {
		batch.Queue(
			`INSERT INTO questions (question_id, text, options, correct_index, difficulty, topic, explanation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, q.Text, q.Options, q.CorrectIndex, q.Difficulty, q.Topic, q.Explanation,
		)
		batch.Queue(
			`INSERT INTO quiz_questions (quiz_id, question_id, position) VALUES ($1, $2, $3)`,
			quizID, q.ID, i,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert generated questions: %w", err)
	}
	return nil
}

// LinkQuestions associates existing bank questions to a quiz in order.
func (r *QuizRepository) LinkQuestions(ctx context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) error {
	batch := &pgx.Batch{}
	for i, id := range questionIDs {
		batch.Queue(
			`INSERT INTO quiz_questions (quiz_id, question_id, position) VALUES ($1, $2, $3)`,
			quizID, id, i,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("link questions: %w", err)
	}
	return nil
}

// DeleteQuiz removes a quiz row. Used as the compensating rollback when
// question persistence fails after the quiz row was created; join rows go
// with it via ON DELETE CASCADE.
func (r *QuizRepository) DeleteQuiz(ctx context.Context, quizID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE quiz_id = $1`, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

// MarkSeen upserts caller-question pairs, ignoring duplicates.
func (r *QuizRepository) MarkSeen(ctx context.Context, callerID uuid.UUID, questionIDs []uuid.UUID) error {
	batch := &pgx.Batch{}
	for _, id := range questionIDs {
		batch.Queue(
			`INSERT INTO seen_questions (user_id, question_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			callerID, id,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("mark questions seen: %w", err)
	}
	return nil
}
