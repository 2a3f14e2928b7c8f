package session

import (
	"sync"
	"time"
)

const tickInterval = time.Second

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type tickerFunc func(d time.Duration) Ticker

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

type SchedulerConfig struct {
	// Now is the clock used for deadline checks. Defaults to time.Now.
	Now func() time.Time
	// NewTickerFunc overrides tick creation. Defaults to time.NewTicker.
	NewTickerFunc func(d time.Duration) Ticker
}

// Scheduler maintains at most one armed deadline per principal. Each tick
// recomputes remaining time from the absolute deadline rather than counting
// down, so a suspended process fires immediately on the next tick instead of
// drifting. The expiry callback is invoked at most once per armed deadline.
type Scheduler struct {
	now       func() time.Time
	newTicker tickerFunc

	mu     sync.Mutex
	timers map[string]*deadline
}

func NewScheduler(c SchedulerConfig) *Scheduler {
	s := &Scheduler{
		now:       c.Now,
		newTicker: c.NewTickerFunc,
		timers:    make(map[string]*deadline),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newTicker == nil {
		s.newTicker = func(d time.Duration) Ticker {
			return realTicker{time.NewTicker(d)}
		}
	}
	return s
}

type deadline struct {
	mu        sync.Mutex
	stopped   bool
	expiresAt time.Time
	tick      Ticker
	done      chan struct{}
}

// Arm schedules onExpire for the given absolute deadline, replacing any
// deadline already armed for the principal. The previous timer is disarmed
// before the new one starts, so a principal never has two live timers.
func (s *Scheduler) Arm(principal string, expiresAt time.Time, onExpire func()) {
	s.mu.Lock()
	if prev, ok := s.timers[principal]; ok {
		prev.stop()
	}

	d := &deadline{
		expiresAt: expiresAt,
		tick:      s.newTicker(tickInterval),
		done:      make(chan struct{}),
	}
	s.timers[principal] = d
	s.mu.Unlock()

	go s.run(principal, d, onExpire)
}

func (s *Scheduler) run(principal string, d *deadline, onExpire func()) {
	for {
		select {
		case <-d.done:
			return
		case <-d.tick.C():
		}

		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		if s.now().Before(d.expiresAt) {
			d.mu.Unlock()
			continue
		}
		// The fire decision is committed under the lock, serialized with
		// Disarm's stop.
		d.stopped = true
		close(d.done)
		d.mu.Unlock()

		d.tick.Stop()
		s.forget(principal, d)
		onExpire()
		return
	}
}

// Disarm stops the principal's timer. The stop is serialized with the fire
// decision: after Disarm returns, either the callback will never run, or it
// had already been committed before the disarm (the caller's finalize gate
// resolves that race).
func (s *Scheduler) Disarm(principal string) {
	s.mu.Lock()
	d, ok := s.timers[principal]
	if ok {
		delete(s.timers, principal)
	}
	s.mu.Unlock()

	if ok {
		d.stop()
	}
}

// Stop disarms every timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[string]*deadline)
	s.mu.Unlock()

	for _, d := range timers {
		d.stop()
	}
}

func (s *Scheduler) forget(principal string, d *deadline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers[principal] == d {
		delete(s.timers, principal)
	}
}

func (d *deadline) stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.done)
	}
	d.mu.Unlock()
	d.tick.Stop()
}
