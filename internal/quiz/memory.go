package quiz

import (
	"context"

	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/errors"
)

// Memory is an in-memory catalog seeded at construction. It backs the mock
// storage driver and tests.
type Memory struct {
	quizzes []domain.Quiz
}

func NewMemory(quizzes ...domain.Quiz) *Memory {
	return &Memory{quizzes: quizzes}
}

func (m *Memory) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	out := make([]domain.Quiz, len(m.quizzes))
	copy(out, m.quizzes)
	for i := range out {
		out[i].QuestionCount = len(out[i].Questions)
	}
	return out, nil
}

func (m *Memory) GetQuiz(_ context.Context, quizID string) (*domain.Quiz, error) {
	for _, q := range m.quizzes {
		if q.QuizID == quizID {
			cp := q
			cp.Questions = append([]domain.Question(nil), q.Questions...)
			return &cp, nil
		}
	}

	return nil, errors.New(errors.CodeNotFound,
		errors.WithMessagef("quiz not found: %s", quizID))
}
