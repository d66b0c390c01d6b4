package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
)

type entry struct {
	record    *idempotency.Record
	expiresAt time.Time
}

// MemoryStore keeps records in process memory. Expired entries are dropped
// lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]entry
	locks   map[string]time.Time
	clock   clock.Clock
}

var _ idempotency.Store = (*MemoryStore)(nil)

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System()
	}

	return &MemoryStore{
		records: make(map[string]entry),
		locks:   make(map[string]time.Time),
		clock:   clk,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*idempotency.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.records[key]
	if !ok {
		return nil, nil
	}

	if !s.clock.Now().Before(cached.expiresAt) {
		delete(s.records, key)

		return nil, nil
	}

	record := *cached.record

	return &record, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, record *idempotency.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	s.records[key] = entry{record: &stored, expiresAt: s.clock.Now().Add(ttl)}

	return nil
}

func (s *MemoryStore) SetLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	if expiresAt, held := s.locks[key]; held && now.Before(expiresAt) {
		return false, nil
	}

	s.locks[key] = now.Add(ttl)

	return true, nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, key)

	return nil
}
