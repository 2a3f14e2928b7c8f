package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yssalam/mini-quiz-app/internal/api"
	"github.com/yssalam/mini-quiz-app/internal/auth"
	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/event"
	"github.com/yssalam/mini-quiz-app/internal/history"
	"github.com/yssalam/mini-quiz-app/internal/quiz"
	"github.com/yssalam/mini-quiz-app/internal/session"
)

func TestAPI_RequiresBearerToken(t *testing.T) {
	e := makeAPI(t)

	resp := do(t, e, http.MethodGet, "/api/v1/quizzes", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = do(t, e, http.MethodGet, "/api/v1/quizzes", "not-a-token", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAPI_QuizFlow(t *testing.T) {
	e := makeAPI(t)

	// List the catalog.
	resp := do(t, e, http.MethodGet, "/api/v1/quizzes", "token-u1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var listBody struct {
		Success bool `json:"success"`
		Data    []struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			QuestionCount   int    `json:"question_count"`
			DurationMinutes int    `json:"duration_minutes"`
		} `json:"data"`
	}
	decode(t, resp, &listBody)
	require.True(t, listBody.Success)
	require.Len(t, listBody.Data, 1)
	require.Equal(t, "math-101", listBody.Data[0].ID)
	require.Equal(t, 60, listBody.Data[0].DurationMinutes)

	// No attempt yet.
	resp = do(t, e, http.MethodGet, "/api/v1/quiz/active", "token-u1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var activeBody struct {
		Data json.RawMessage `json:"data"`
	}
	decode(t, resp, &activeBody)
	require.Equal(t, "null", string(activeBody.Data))

	// Start one.
	resp = do(t, e, http.MethodPost, "/api/v1/quiz/start/math-101", "token-u1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var startBody struct {
		Data struct {
			SessionID string `json:"session_id"`
			Questions []map[string]json.RawMessage `json:"questions"`
		} `json:"data"`
	}
	decode(t, resp, &startBody)
	require.NotEmpty(t, startBody.Data.SessionID)
	require.Len(t, startBody.Data.Questions, 2)
	for _, q := range startBody.Data.Questions {
		_, leaked := q["correct"]
		require.False(t, leaked, "the answer key must never reach the client")
	}

	// Starting again conflicts and reports the live attempt.
	resp = do(t, e, http.MethodPost, "/api/v1/quiz/start/math-101", "token-u1", "")
	require.Equal(t, http.StatusConflict, resp.Code)
	var conflictBody struct {
		Success bool `json:"success"`
		Details struct {
			SessionID string `json:"session_id"`
		} `json:"details"`
	}
	decode(t, resp, &conflictBody)
	require.False(t, conflictBody.Success)
	require.Equal(t, startBody.Data.SessionID, conflictBody.Details.SessionID)

	// Record answers, one invalid.
	resp = do(t, e, http.MethodPut, "/api/v1/quiz/answer", "token-u1",
		`{"question_number":"1","option":"B"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, e, http.MethodPut, "/api/v1/quiz/answer", "token-u1",
		`{"question_number":"1","option":"Z"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	// Submit with the second answer in the payload.
	resp = do(t, e, http.MethodPost, "/api/v1/quiz/submit", "token-u1",
		`{"answers":{"2":"C"}}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var submitBody struct {
		Data struct {
			SessionID      string            `json:"session_id"`
			Status         string            `json:"status"`
			Score          int               `json:"score"`
			TotalQuestions int               `json:"total_questions"`
			Answers        map[string]string `json:"answers"`
		} `json:"data"`
	}
	decode(t, resp, &submitBody)
	require.Equal(t, startBody.Data.SessionID, submitBody.Data.SessionID)
	require.Equal(t, "submitted", submitBody.Data.Status)
	require.Equal(t, 2, submitBody.Data.Score)
	require.Equal(t, 2, submitBody.Data.TotalQuestions)
	require.Equal(t, map[string]string{"1": "B", "2": "C"}, submitBody.Data.Answers)

	// The attempt is gone, the result is in history.
	resp = do(t, e, http.MethodGet, "/api/v1/quiz/active", "token-u1", "")
	decode(t, resp, &activeBody)
	require.Equal(t, "null", string(activeBody.Data))

	resp = do(t, e, http.MethodGet, "/api/v1/quiz/history?limit=10&offset=0", "token-u1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var historyBody struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	}
	decode(t, resp, &historyBody)
	require.Equal(t, 1, historyBody.Total)
	require.Len(t, historyBody.Data, 1)

	resp = do(t, e, http.MethodGet, "/api/v1/quiz/result/"+startBody.Data.SessionID, "token-u1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, e, http.MethodGet, "/api/v1/quiz/result/unknown", "token-u1", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAPI_CancelWithoutAttempt(t *testing.T) {
	e := makeAPI(t)

	resp := do(t, e, http.MethodDelete, "/api/v1/quiz/cancel", "token-u1", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	decode(t, resp, &body)
	require.False(t, body.Success)
	require.NotEmpty(t, body.Error)
}

func makeAPI(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	e := gin.New()

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	catalog := quiz.NewMemory(domain.Quiz{
		QuizID:   "math-101",
		Name:     "Mathematics",
		Duration: time.Hour,
		Questions: []domain.Question{
			{Number: "1", Text: "What is 1 + 1?", Options: []string{"1", "2", "3", "4"}, Correct: "B"},
			{Number: "2", Text: "What is 2 + 2?", Options: []string{"2", "3", "4", "5"}, Correct: "C"},
		},
	})
	hist := history.NewMemory()

	svc := session.NewService(session.Config{
		Quizzes:  catalog,
		Records:  session.NewMemoryRecords(),
		History:  hist,
		EventBus: eb,
	})
	t.Cleanup(svc.Stop)

	api.New(api.Config{
		Router:   e,
		EventBus: eb,
		Session:  svc,
		Quizzes:  catalog,
		History:  hist,
		Auth:     auth.NewStaticVerifier(map[string]string{"token-u1": "u1"}),
		Redis:    nopRedis{},
	})

	return e
}

func do(t *testing.T, e *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

type nopRedis struct{}

func (nopRedis) Publish(ctx context.Context, _ string, _ any) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}
