package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yssalam/mini-quiz-app/internal/auth"
	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/errors"
	"github.com/yssalam/mini-quiz-app/internal/event"
	"github.com/yssalam/mini-quiz-app/internal/history"
	"github.com/yssalam/mini-quiz-app/internal/session"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type QuizLister interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Quizzes      QuizLister
	History      history.Store
	Auth         auth.Verifier
	Redis        Redis
	PubsubPrefix string
}

type API struct {
	session *session.Service
	quizzes QuizLister
	history history.Store
	auth    auth.Verifier

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		session: c.Session,
		quizzes: c.Quizzes,
		history: c.History,
		auth:    c.Auth,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	v1 := c.Router.Group("/api/v1")
	v1.Use(a.authenticate)

	v1.GET("/quizzes", a.ListQuizzes)
	v1.POST("/quiz/start/:quizID", a.StartQuiz)
	v1.GET("/quiz/active", a.GetActiveQuiz)
	v1.PUT("/quiz/answer", a.RecordAnswer)
	v1.POST("/quiz/submit", a.SubmitQuiz)
	v1.DELETE("/quiz/cancel", a.CancelQuiz)
	v1.GET("/quiz/history", a.GetHistory)
	v1.GET("/quiz/result/:sessionID", a.GetResult)

	c.EventBus.Subscribe(domain.EventNameSessionFinalized, func(ctx context.Context, e event.Event) error {
		return a.PublishSessionFinalized(ctx, e.(domain.EventSessionFinalized))
	})

	return a
}

// Question is the client-facing view of a snapshot question. It deliberately
// has no field for the correct option: the answer key never leaves the
// server, scoring happens on submit.
type Question struct {
	Number  string   `json:"question_number"`
	Text    string   `json:"question_text"`
	Options []string `json:"options"`
}

type Session struct {
	SessionID string            `json:"session_id"`
	QuizID    string            `json:"quiz_id"`
	QuizName  string            `json:"quiz_name"`
	Questions []Question        `json:"questions"`
	Answers   map[string]string `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type Quiz struct {
	QuizID          string `json:"id"`
	Name            string `json:"name"`
	QuestionCount   int    `json:"question_count"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (a *API) ListQuizzes(c *gin.Context) {
	quizzes, err := a.quizzes.ListQuizzes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, Quiz{
			QuizID:          q.QuizID,
			Name:            q.Name,
			QuestionCount:   q.QuestionCount,
			DurationMinutes: int(q.Duration / time.Minute),
		})
	}

	ok(c, out)
}

func (a *API) StartQuiz(c *gin.Context) {
	ss, err := a.session.Start(c.Request.Context(), session.StartRequest{
		Principal: principal(c),
		QuizID:    c.Param("quizID"),
	})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, viewSession(ss))
}

func (a *API) GetActiveQuiz(c *gin.Context) {
	ss, err := a.session.GetActive(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}

	if ss == nil {
		ok(c, nil)
		return
	}

	ok(c, viewSession(ss))
}

type RecordAnswerRequest struct {
	QuestionNumber string `json:"question_number" binding:"required"`
	Option         string `json:"option" binding:"required"`
}

func (a *API) RecordAnswer(c *gin.Context) {
	var req RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	err := a.session.RecordAnswer(c.Request.Context(), session.RecordAnswerRequest{
		Principal: principal(c),
		Number:    req.QuestionNumber,
		Option:    req.Option,
	})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, nil)
}

type SubmitQuizRequest struct {
	Answers map[string]string `json:"answers"`
}

func (a *API) SubmitQuiz(c *gin.Context) {
	var req SubmitQuizRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
			return
		}
	}

	r, err := a.session.Submit(c.Request.Context(), session.SubmitRequest{
		Principal: principal(c),
		Answers:   req.Answers,
	})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, r)
}

func (a *API) CancelQuiz(c *gin.Context) {
	if err := a.session.Cancel(c.Request.Context(), principal(c)); err != nil {
		fail(c, err)
		return
	}

	ok(c, nil)
}

func (a *API) GetHistory(c *gin.Context) {
	limit := intQuery(c, "limit", defaultHistoryLimit)
	offset := intQuery(c, "offset", 0)
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	p, err := a.history.List(c.Request.Context(), principal(c), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    p.Items,
		"total":   p.Total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (a *API) GetResult(c *gin.Context) {
	r, err := a.history.Get(c.Request.Context(), principal(c), c.Param("sessionID"))
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, r)
}

const principalKey = "principal"

func (a *API) authenticate(c *gin.Context) {
	h := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found || token == "" {
		fail(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("missing bearer token")))
		c.Abort()
		return
	}

	p, err := a.auth.Verify(c.Request.Context(), token)
	if err != nil {
		fail(c, err)
		c.Abort()
		return
	}

	c.Set(principalKey, p)
	c.Next()
}

func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

func viewSession(ss *domain.Session) Session {
	qs := make([]Question, 0, len(ss.Questions))
	for _, q := range ss.Questions {
		qs = append(qs, Question{
			Number:  q.Number,
			Text:    q.Text,
			Options: q.Options,
		})
	}

	return Session{
		SessionID: ss.SessionID,
		QuizID:    ss.QuizID,
		QuizName:  ss.QuizName,
		Questions: qs,
		Answers:   ss.Answers,
		CreatedAt: ss.CreatedAt,
		ExpiresAt: ss.ExpiresAt,
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func fail(c *gin.Context, err error) {
	e := errors.Convert(err)

	body := gin.H{
		"success": false,
		"error":   e.Message,
	}
	if e.Details != nil {
		body["details"] = e.Details
	}

	c.JSON(e.HTTPStatusCode(), body)
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
