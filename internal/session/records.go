package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/yssalam/mini-quiz-app/internal/domain"
)

// ErrRecordExists is returned by Create when the principal's slot is already
// claimed. The claim is the durable half of the one-active-session invariant.
var ErrRecordExists = stderrors.New("session: active record already exists")

// Records is the durable single-slot store of the active session per
// principal. Absence of a record means "no active session". The record only
// exists so an attempt survives process restarts; the Service remains the
// sole writer.
type Records interface {
	// Create claims the principal's slot. Fails with ErrRecordExists when a
	// record is already present, without touching it.
	Create(ctx context.Context, s *domain.Session) error
	// Get returns the stored session, or (nil, nil) when the slot is empty.
	Get(ctx context.Context, principal string) (*domain.Session, error)
	// Update overwrites the stored session. Used for answer recording.
	Update(ctx context.Context, s *domain.Session) error
	// Clear empties the principal's slot. Clearing an empty slot is a no-op.
	Clear(ctx context.Context, principal string) error
}

type RedisRecordsConfig struct {
	Redis  redis.UniversalClient
	Prefix string
}

// RedisRecords stores one session record per principal in redis. SETNX makes
// the slot claim atomic across processes.
type RedisRecords struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRecords(c RedisRecordsConfig) *RedisRecords {
	return &RedisRecords{
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

func (r *RedisRecords) Create(ctx context.Context, s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	ok, err := r.redis.SetNX(ctx, r.key(s.Principal), b, 0).Result()
	if err != nil {
		return fmt.Errorf("claim session record: %w", err)
	}
	if !ok {
		return ErrRecordExists
	}

	return nil
}

func (r *RedisRecords) Get(ctx context.Context, principal string) (*domain.Session, error) {
	b, err := r.redis.Get(ctx, r.key(principal)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session record: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}

	return &s, nil
}

func (r *RedisRecords) Update(ctx context.Context, s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	if err := r.redis.Set(ctx, r.key(s.Principal), b, 0).Err(); err != nil {
		return fmt.Errorf("update session record: %w", err)
	}

	return nil
}

func (r *RedisRecords) Clear(ctx context.Context, principal string) error {
	if err := r.redis.Del(ctx, r.key(principal)).Err(); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}

	return nil
}

func (r *RedisRecords) key(principal string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, principal)
}

// MemoryRecords is the in-memory Records used by the mock storage driver and
// tests.
type MemoryRecords struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string][]byte)}
}

func (m *MemoryRecords) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[s.Principal]; ok {
		return ErrRecordExists
	}

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.records[s.Principal] = b
	return nil
}

func (m *MemoryRecords) Get(_ context.Context, principal string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.records[principal]
	if !ok {
		return nil, nil
	}

	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemoryRecords) Update(_ context.Context, s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.Principal] = b
	return nil
}

func (m *MemoryRecords) Clear(_ context.Context, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, principal)
	return nil
}
