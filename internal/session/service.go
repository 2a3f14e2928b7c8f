package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/errors"
	"github.com/yssalam/mini-quiz-app/internal/event"
	"github.com/yssalam/mini-quiz-app/internal/history"
	"github.com/yssalam/mini-quiz-app/internal/score"
)

const expireTimeout = 10 * time.Second

// QuizCatalog supplies quiz definitions, answer key included.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error)
}

type Config struct {
	Quizzes   QuizCatalog
	Records   Records
	History   history.Store
	EventBus  *event.Bus
	Scheduler *Scheduler
	// Now is the clock for deadline decisions. Defaults to time.Now.
	Now func() time.Time
}

// Service owns the lifecycle of the one active attempt each principal may
// hold. Every lifecycle operation for a principal runs under that principal's
// gate, so user submits, deadline expiries and resumes after reload are
// interleaved, never concurrent: whichever reaches the gate first finalizes,
// the others observe the finalized outcome.
type Service struct {
	quizzes   QuizCatalog
	records   Records
	history   history.Store
	eb        *event.Bus
	scheduler *Scheduler
	now       func() time.Time

	gates gates
}

func NewService(c Config) *Service {
	s := &Service{
		quizzes:   c.Quizzes,
		records:   c.Records,
		history:   c.History,
		eb:        c.EventBus,
		scheduler: c.Scheduler,
		now:       c.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.scheduler == nil {
		s.scheduler = NewScheduler(SchedulerConfig{Now: s.now})
	}
	return s
}

// Stop disarms all deadline timers. Used on shutdown; persisted records stay
// in place and resume on the next start of the process.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

type StartRequest struct {
	Principal string
	QuizID    string
}

// Start creates a new attempt for the principal. It fails with an
// already-exists error carrying the active session's summary when an attempt
// is already live, so the caller can offer resume-or-replace.
func (s *Service) Start(ctx context.Context, req StartRequest) (*domain.Session, error) {
	g := s.gates.get(req.Principal)
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, err := s.getActiveLocked(ctx, g, req.Principal)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, s.conflict(existing)
	}

	q, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := s.now()
	ss := &domain.Session{
		SessionID: id.String(),
		Principal: req.Principal,
		QuizID:    q.QuizID,
		QuizName:  q.Name,
		Questions: append([]domain.Question(nil), q.Questions...),
		Answers:   map[string]string{},
		CreatedAt: now,
		ExpiresAt: now.Add(q.Duration),
		Status:    domain.SessionActive,
	}

	// The store claim is the authoritative precondition check: another
	// process may have claimed the slot between the read above and here.
	if err := s.records.Create(ctx, ss); err != nil {
		if stderrors.Is(err, ErrRecordExists) {
			if existing, err := s.getActiveLocked(ctx, g, req.Principal); err == nil && existing != nil {
				return nil, s.conflict(existing)
			}
			return nil, errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("an active quiz attempt already exists"))
		}
		return nil, err
	}

	g.lastResult = nil
	s.armLocked(ss)
	s.eb.Publish(ctx, domain.EventSessionStarted{Session: *ss})

	return ss, nil
}

// StartOrReplace discards the principal's active attempt, if any, then starts
// a fresh one. The discarded attempt is cancelled, not scored. The two steps
// are sequential; Start re-checks the no-active-attempt precondition itself.
func (s *Service) StartOrReplace(ctx context.Context, req StartRequest) (*domain.Session, error) {
	if err := s.Cancel(ctx, req.Principal); err != nil &&
		!errors.IsCode(err, errors.CodeFailedPrecondition) {
		return nil, err
	}

	return s.Start(ctx, req)
}

// GetActive returns the principal's live attempt, re-arming its deadline
// timer from the persisted expiry, or (nil, nil) when there is none. A
// persisted attempt whose deadline has already passed is finalized as expired
// on the spot, exactly as if the timer had fired.
func (s *Service) GetActive(ctx context.Context, principal string) (*domain.Session, error) {
	g := s.gates.get(principal)
	g.mu.Lock()
	defer g.mu.Unlock()

	ss, err := s.getActiveLocked(ctx, g, principal)
	if err != nil || ss == nil {
		return nil, err
	}

	s.armLocked(ss)
	return ss, nil
}

type RecordAnswerRequest struct {
	Principal string
	Number    string
	Option    string
}

// RecordAnswer sets or overwrites the principal's answer to one question.
// The reference must resolve against the attempt's snapshot; a bad question
// number or option letter is rejected rather than dropped, so the stored
// answer map is always valid against the snapshot.
func (s *Service) RecordAnswer(ctx context.Context, req RecordAnswerRequest) error {
	g := s.gates.get(req.Principal)
	g.mu.Lock()
	defer g.mu.Unlock()

	ss, err := s.getActiveLocked(ctx, g, req.Principal)
	if err != nil {
		return err
	}
	if ss == nil {
		return notActive()
	}

	if err := validateAnswer(ss, req.Number, req.Option); err != nil {
		return err
	}

	ss.Answers[req.Number] = req.Option
	return s.records.Update(ctx, ss)
}

type SubmitRequest struct {
	Principal string
	// Answers not recorded incrementally may ride on the submit itself; they
	// are validated and merged before scoring.
	Answers map[string]string
}

// Submit finalizes the principal's attempt with status submitted and returns
// its result. When the attempt was already finalized by the deadline — the
// user pressed submit as the clock ran out — Submit returns that result
// instead of failing, so both sides of the race observe the same outcome.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Result, error) {
	g := s.gates.get(req.Principal)
	g.mu.Lock()
	defer g.mu.Unlock()

	ss, err := s.getActiveLocked(ctx, g, req.Principal)
	if err != nil {
		return nil, err
	}
	if ss == nil {
		if g.lastResult != nil {
			return g.lastResult, nil
		}
		return nil, notActive()
	}

	for n, o := range req.Answers {
		if err := validateAnswer(ss, n, o); err != nil {
			return nil, err
		}
	}
	for n, o := range req.Answers {
		ss.Answers[n] = o
	}

	return s.finalizeLocked(ctx, g, ss, domain.SessionSubmitted)
}

// Cancel discards the principal's active attempt without producing a result.
func (s *Service) Cancel(ctx context.Context, principal string) error {
	g := s.gates.get(principal)
	g.mu.Lock()
	defer g.mu.Unlock()

	ss, err := s.getActiveLocked(ctx, g, principal)
	if err != nil {
		return err
	}
	if ss == nil {
		return notActive()
	}

	s.scheduler.Disarm(principal)
	if err := s.records.Clear(ctx, principal); err != nil {
		return err
	}
	ss.Status = domain.SessionCancelled
	g.lastResult = nil

	s.eb.Publish(ctx, domain.EventSessionFinalized{
		Principal: principal,
		Status:    domain.SessionCancelled,
	})

	return nil
}

// getActiveLocked reads the persisted record and lazily finalizes it as
// expired when its deadline has already passed, e.g. after the process was
// down across the deadline. Callers hold the principal's gate.
func (s *Service) getActiveLocked(ctx context.Context, g *gate, principal string) (*domain.Session, error) {
	ss, err := s.records.Get(ctx, principal)
	if err != nil {
		return nil, err
	}
	if ss == nil {
		return nil, nil
	}

	if !s.now().Before(ss.ExpiresAt) {
		if _, err := s.finalizeLocked(ctx, g, ss, domain.SessionExpired); err != nil {
			slog.ErrorContext(ctx, "session: finalize overdue attempt failed",
				"principal", principal,
				"session_id", ss.SessionID,
				"error", err,
			)
		}
		return nil, nil
	}

	return ss, nil
}

// finalizeLocked performs the single transition out of the active state:
// disarm, score, append to history, clear the record, publish. It is total:
// the record is cleared and the result returned even when the history append
// fails, in which case the error is returned alongside the result so the
// caller can retry the append with the already-computed result.
func (s *Service) finalizeLocked(ctx context.Context, g *gate, ss *domain.Session, status domain.SessionStatus) (*domain.Result, error) {
	s.scheduler.Disarm(ss.Principal)

	t := score.Evaluate(ss.Questions, ss.Answers)
	r := &domain.Result{
		SessionID:      ss.SessionID,
		Principal:      ss.Principal,
		QuizID:         ss.QuizID,
		QuizName:       ss.QuizName,
		Status:         status,
		Score:          t.Score,
		TotalQuestions: t.Total,
		Percentage:     t.Percentage,
		CompletedAt:    s.now(),
		Answers:        ss.Answers,
	}
	ss.Status = status

	appendErr := s.history.Append(ctx, r)

	if err := s.records.Clear(ctx, ss.Principal); err != nil {
		appendErr = stderrors.Join(appendErr, err)
	}
	g.lastResult = r

	s.eb.Publish(ctx, domain.EventSessionFinalized{
		Principal: ss.Principal,
		Status:    status,
		Result:    r,
	})

	if appendErr != nil {
		return r, fmt.Errorf("finalize session %s: %w", ss.SessionID, appendErr)
	}

	return r, nil
}

// expire is the deadline callback. It re-reads the record under the gate: the
// attempt may have been submitted, cancelled or replaced since the timer was
// armed, in which case there is nothing left to do.
func (s *Service) expire(principal, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	g := s.gates.get(principal)
	g.mu.Lock()
	defer g.mu.Unlock()

	ss, err := s.records.Get(ctx, principal)
	if err != nil {
		slog.ErrorContext(ctx, "session: read record on expiry failed",
			"principal", principal,
			"session_id", sessionID,
			"error", err,
		)
		return
	}
	if ss == nil || ss.SessionID != sessionID {
		return
	}

	if _, err := s.finalizeLocked(ctx, g, ss, domain.SessionExpired); err != nil {
		slog.ErrorContext(ctx, "session: finalize expired attempt failed",
			"principal", principal,
			"session_id", sessionID,
			"error", err,
		)
	}
}

// armLocked (re-)arms the deadline timer from the persisted expiry. Arming is
// always anchored on the stored ExpiresAt, never recomputed from now.
func (s *Service) armLocked(ss *domain.Session) {
	principal, sessionID := ss.Principal, ss.SessionID
	s.scheduler.Arm(principal, ss.ExpiresAt, func() {
		s.expire(principal, sessionID)
	})
}

func (s *Service) conflict(existing *domain.Session) error {
	return errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("an active quiz attempt already exists"),
		errors.WithDetails(domain.ActiveSummary{
			SessionID: existing.SessionID,
			QuizID:    existing.QuizID,
			QuizName:  existing.QuizName,
			Remaining: existing.Remaining(s.now()),
		}),
	)
}

func validateAnswer(ss *domain.Session, number, option string) error {
	for _, q := range ss.Questions {
		if q.Number != number {
			continue
		}
		if !q.HasOption(option) {
			return errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("question %s has no option %q", number, option))
		}
		return nil
	}

	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("question %s is not part of this attempt", number))
}

func notActive() error {
	return errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("no active quiz attempt"))
}
