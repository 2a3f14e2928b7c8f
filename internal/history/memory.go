package history

import (
	"context"
	"sync"

	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/errors"
)

// Memory is the in-memory Store used by the mock storage driver and tests.
// Results are kept newest first, matching the listing order of the Postgres
// implementation.
type Memory struct {
	mu      sync.Mutex
	results map[string][]domain.Result
}

func NewMemory() *Memory {
	return &Memory{results: make(map[string][]domain.Result)}
}

func (m *Memory) Append(_ context.Context, r *domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, have := range m.results[r.Principal] {
		if have.SessionID == r.SessionID {
			return nil
		}
	}

	m.results[r.Principal] = append([]domain.Result{*r}, m.results[r.Principal]...)
	return nil
}

func (m *Memory) List(_ context.Context, principal string, limit, offset int) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.results[principal]
	p := &Page{
		Items: []domain.Result{},
		Total: len(all),
	}

	if offset >= len(all) || limit <= 0 {
		return p, nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	p.Items = append(p.Items, all[offset:end]...)

	return p, nil
}

func (m *Memory) Get(_ context.Context, principal, sessionID string) (*domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.results[principal] {
		if r.SessionID == sessionID {
			cp := r
			return &cp, nil
		}
	}

	return nil, errors.New(errors.CodeNotFound,
		errors.WithMessagef("result not found: %s", sessionID))
}
