package history

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/errors"
)

// Page is one page of a principal's finalized results, newest first.
type Page struct {
	Items []domain.Result
	Total int
}

// Store is the append-only log of finalized results. A result is written once
// at finalization and never edited or removed afterwards.
type Store interface {
	// Append records a finalized result. Re-appending the same session is
	// idempotent, so a caller may retry with an already-computed result.
	Append(ctx context.Context, r *domain.Result) error
	// List returns the principal's results newest first, with the total count.
	List(ctx context.Context, principal string, limit, offset int) (*Page, error)
	// Get returns one result by session ID, scoped to the principal.
	Get(ctx context.Context, principal, sessionID string) (*domain.Result, error)
}

type PostgresConfig struct {
	DB *pgxpool.Pool
}

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(c PostgresConfig) *Postgres {
	return &Postgres{db: c.DB}
}

func (s *Postgres) Append(ctx context.Context, r *domain.Result) error {
	const stmt = `
INSERT INTO results (session_id, principal, quiz_id, quiz_name, status, score, total_questions, percentage, completed_at, answers)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := s.db.Exec(ctx, stmt,
		r.SessionID, r.Principal, r.QuizID, r.QuizName, string(r.Status),
		r.Score, r.TotalQuestions, r.Percentage, r.CompletedAt, r.Answers,
	)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		// Retried append of the same result; the log already has it.
		return nil
	}

	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}

	return nil
}

func (s *Postgres) List(ctx context.Context, principal string, limit, offset int) (*Page, error) {
	const countStmt = `SELECT COUNT(*) FROM results WHERE principal = $1;`

	p := &Page{Items: []domain.Result{}}
	if err := s.db.QueryRow(ctx, countStmt, principal).Scan(&p.Total); err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}

	const listStmt = `
SELECT session_id, quiz_id, quiz_name, status, score, total_questions, percentage, completed_at, answers
FROM results
WHERE principal = $1
ORDER BY completed_at DESC, session_id DESC
LIMIT $2 OFFSET $3;`

	rows, err := s.db.Query(ctx, listStmt, principal, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	p.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Result, error) {
		r := domain.Result{Principal: principal}
		var status string
		if err := row.Scan(&r.SessionID, &r.QuizID, &r.QuizName, &status,
			&r.Score, &r.TotalQuestions, &r.Percentage, &r.CompletedAt, &r.Answers); err != nil {
			return domain.Result{}, err
		}
		r.Status = domain.SessionStatus(status)
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Postgres) Get(ctx context.Context, principal, sessionID string) (*domain.Result, error) {
	const stmt = `
SELECT session_id, quiz_id, quiz_name, status, score, total_questions, percentage, completed_at, answers
FROM results
WHERE principal = $1 AND session_id = $2;`

	r := domain.Result{Principal: principal}
	var status string
	err := s.db.QueryRow(ctx, stmt, principal, sessionID).Scan(
		&r.SessionID, &r.QuizID, &r.QuizName, &status,
		&r.Score, &r.TotalQuestions, &r.Percentage, &r.CompletedAt, &r.Answers,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("result not found: %s", sessionID))
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	r.Status = domain.SessionStatus(status)

	return &r, nil
}
