package quiz

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

// Service reads quiz definitions from Postgres. Definitions are external,
// read-only input to the session core.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

// ListQuizzes returns every quiz definition without questions. The listing
// feeds the dashboard; question payloads are only loaded when an attempt
// starts.
func (s *Service) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	const stmt = `
SELECT q.quiz_id, q.name, q.duration_seconds, COUNT(qq.question_number)
FROM quizzes q
LEFT JOIN quiz_questions qq ON qq.quiz_id = q.quiz_id
GROUP BY q.quiz_id, q.name, q.duration_seconds
ORDER BY q.quiz_id;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		var (
			q       domain.Quiz
			seconds int64
		)
		if err := r.Scan(&q.QuizID, &q.Name, &seconds, &q.QuestionCount); err != nil {
			return domain.Quiz{}, err
		}
		q.Duration = time.Duration(seconds) * time.Second
		return q, nil
	})
}

// GetQuiz returns the full definition including the answer key. The key stays
// on the trusted side; only the session core may see it.
func (s *Service) GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	const quizStmt = `SELECT quiz_id, name, duration_seconds FROM quizzes WHERE quiz_id = $1;`

	var (
		q       domain.Quiz
		seconds int64
	)
	err := s.db.QueryRow(ctx, quizStmt, quizID).Scan(&q.QuizID, &q.Name, &seconds)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz not found: %s", quizID))
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	q.Duration = time.Duration(seconds) * time.Second

	const questionStmt = `
SELECT question_number, question_text, options, correct
FROM quiz_questions
WHERE quiz_id = $1
ORDER BY question_number;`

	rows, err := s.db.Query(ctx, questionStmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz questions: %w", err)
	}

	q.Questions, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var qq domain.Question
		if err := r.Scan(&qq.Number, &qq.Text, &qq.Options, &qq.Correct); err != nil {
			return domain.Question{}, err
		}
		return qq, nil
	})
	if err != nil {
		return nil, err
	}

	return &q, nil
}
