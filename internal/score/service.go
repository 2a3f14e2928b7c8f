package score

import (
	"github.com/shopspring/decimal"

	"github.com/yssalam/mini-quiz-app/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Evaluate scores an answer set against a question snapshot. An unanswered
// question, or an answer that does not match the question's correct option,
// counts as incorrect. The percentage is exact (decimal, not truncated) and
// zero when the snapshot is empty.
//
// Evaluate is pure: it never mutates its inputs and identical inputs always
// produce identical tallies, so callers may re-run it freely.
func Evaluate(questions []domain.Question, answers map[string]string) domain.Tally {
	t := domain.Tally{
		Total:      len(questions),
		Percentage: decimal.Zero,
	}

	for _, q := range questions {
		if a, ok := answers[q.Number]; ok && a == q.Correct {
			t.Score++
		}
	}

	if t.Total > 0 {
		t.Percentage = decimal.NewFromInt(int64(t.Score)).
			Div(decimal.NewFromInt(int64(t.Total))).
			Mul(hundred)
	}

	return t
}
