package session

import (
	"sync"

	"github.com/yssalam/mini-quiz-app/internal/domain"
)

// gate serializes one principal's lifecycle operations. lastResult remembers
// the most recent finalized outcome so a submit that loses the race against
// the deadline still returns the same result; it is reset whenever a new
// attempt starts or the current one is cancelled.
type gate struct {
	mu         sync.Mutex
	lastResult *domain.Result
}

type gates struct {
	mu sync.Mutex
	m  map[string]*gate
}

func (gs *gates) get(principal string) *gate {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.m == nil {
		gs.m = make(map[string]*gate)
	}
	g, ok := gs.m[principal]
	if !ok {
		g = &gate{}
		gs.m[principal] = g
	}
	return g
}
