package score_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/score"
)

func TestEvaluate(t *testing.T) {
	twoQuestions := []domain.Question{
		{Number: "1", Text: "What is 1 + 1?", Options: []string{"1", "2", "3", "4"}, Correct: "B"},
		{Number: "2", Text: "What is 2 + 2?", Options: []string{"2", "3", "4", "5"}, Correct: "C"},
	}

	tests := map[string]struct {
		questions      []domain.Question
		answers        map[string]string
		wantScore      int
		wantTotal      int
		wantPercentage decimal.Decimal
	}{
		"empty snapshot scores zero, not NaN": {
			questions:      nil,
			answers:        map[string]string{},
			wantScore:      0,
			wantTotal:      0,
			wantPercentage: decimal.Zero,
		},

		"one of two correct": {
			questions:      twoQuestions,
			answers:        map[string]string{"1": "B"},
			wantScore:      1,
			wantTotal:      2,
			wantPercentage: decimal.NewFromInt(50),
		},

		"all correct": {
			questions:      twoQuestions,
			answers:        map[string]string{"1": "B", "2": "C"},
			wantScore:      2,
			wantTotal:      2,
			wantPercentage: decimal.NewFromInt(100),
		},

		"unanswered and wrong both count incorrect": {
			questions:      twoQuestions,
			answers:        map[string]string{"1": "A"},
			wantScore:      0,
			wantTotal:      2,
			wantPercentage: decimal.Zero,
		},

		"answer to an unknown question is ignored": {
			questions:      twoQuestions,
			answers:        map[string]string{"1": "B", "99": "C"},
			wantScore:      1,
			wantTotal:      2,
			wantPercentage: decimal.NewFromInt(50),
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := score.Evaluate(tt.questions, tt.answers)

			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantTotal, got.Total)
			assert.True(t, tt.wantPercentage.Equal(got.Percentage),
				"want percentage %s, got %s", tt.wantPercentage, got.Percentage)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	questions := []domain.Question{
		{Number: "1", Options: []string{"1", "2", "3"}, Correct: "A"},
	}
	answers := map[string]string{"1": "A"}

	first := score.Evaluate(questions, answers)
	second := score.Evaluate(questions, answers)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Total, second.Total)
	assert.True(t, first.Percentage.Equal(second.Percentage))
	assert.Equal(t, map[string]string{"1": "A"}, answers, "inputs must not be mutated")
}
