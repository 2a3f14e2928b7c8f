package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quiz is a quiz definition as stored in the catalog. Questions carry the
// answer key, so a Quiz must never cross the trust boundary as-is; API
// responses use key-stripped views.
type Quiz struct {
	QuizID string
	Name   string
	// QuestionCount is populated on listings, where question payloads are
	// not loaded.
	QuestionCount int
	Questions     []Question
	Duration      time.Duration
}

type Question struct {
	Number  string   `json:"question_number"`
	Text    string   `json:"question_text"`
	Options []string `json:"options"`
	Correct string   `json:"correct"`
}

// HasOption reports whether letter ("A".."D") addresses one of the
// question's options.
func (q Question) HasOption(letter string) bool {
	if len(letter) != 1 {
		return false
	}
	i := int(letter[0] - 'A')
	return i >= 0 && i < len(q.Options)
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionSubmitted SessionStatus = "submitted"
	SessionExpired   SessionStatus = "expired"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is one timed quiz attempt. Questions is a snapshot copied from the
// catalog at creation time, so later edits to the definition never alter an
// attempt in flight. Answers maps question number to the selected option
// letter and is only mutated while the session is active.
type Session struct {
	SessionID string            `json:"session_id"`
	Principal string            `json:"principal"`
	QuizID    string            `json:"quiz_id"`
	QuizName  string            `json:"quiz_name"`
	Questions []Question        `json:"questions"`
	Answers   map[string]string `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Status    SessionStatus     `json:"status"`
}

// Remaining returns the time left until the session's deadline, floored at 0.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ActiveSummary describes an existing active session. It rides on the
// conflict error returned by start, so the caller can offer resume-or-replace.
type ActiveSummary struct {
	SessionID string        `json:"session_id"`
	QuizID    string        `json:"quiz_id"`
	QuizName  string        `json:"quiz_name"`
	Remaining time.Duration `json:"remaining"`
}

// Tally is the outcome of scoring one answer set against one snapshot.
type Tally struct {
	Score      int
	Total      int
	Percentage decimal.Decimal
}

// Result is the immutable scored outcome of a finalized session.
type Result struct {
	SessionID      string            `json:"session_id"`
	Principal      string            `json:"-"`
	QuizID         string            `json:"quiz_id"`
	QuizName       string            `json:"quiz_name"`
	Status         SessionStatus     `json:"status"`
	Score          int               `json:"score"`
	TotalQuestions int               `json:"total_questions"`
	Percentage     decimal.Decimal   `json:"score_percentage"`
	CompletedAt    time.Time         `json:"completed_at"`
	Answers        map[string]string `json:"answers"`
}
