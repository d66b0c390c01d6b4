// Package memory keeps registrations in process memory.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/pkg/clock"
)

// Store is the physical registration medium. It assigns ids from a sequence
// that Clear never rewinds, so a deleted id is never handed out again.
type Store struct {
	mu            sync.RWMutex
	registrations map[model.RegistrationID]*model.Registration
	lastID        uint64
	clock         clock.Clock
}

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System()
	}

	return &Store{
		registrations: make(map[model.RegistrationID]*model.Registration),
		clock:         clk,
	}
}

// Insert stores copies of regs under fresh ids. Incoming ids are ignored and a
// zero creation time is stamped with the store clock.
func (s *Store) Insert(_ context.Context, regs ...*model.Registration) ([]*model.Registration, error) {
	for _, reg := range regs {
		if reg == nil {
			return nil, model.ErrInvalidRegistration
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	persisted := make([]*model.Registration, 0, len(regs))

	for _, reg := range regs {
		s.lastID++

		stored := reg.Persisted(model.RegistrationID(s.lastID), now)
		s.registrations[stored.ID] = stored

		persisted = append(persisted, stored.Clone())
	}

	return persisted, nil
}

// All returns copies of every stored registration ordered by id.
func (s *Store) All(_ context.Context) ([]*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		out = append(out, reg.Clone())
	}

	slices.SortFunc(out, func(a, b *model.Registration) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return out, nil
}

// Get returns a copy of one registration regardless of its age.
func (s *Store) Get(_ context.Context, id model.RegistrationID) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil, model.ErrRegistrationNotFound
	}

	return reg.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id model.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.registrations, id)

	return nil
}

func (s *Store) DeleteByOwner(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, reg := range s.registrations {
		if reg.Owner == owner {
			delete(s.registrations, id)
		}
	}

	return nil
}

// DeleteIf removes every registration matching pred and returns how many went.
func (s *Store) DeleteIf(_ context.Context, pred func(*model.Registration) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for id, reg := range s.registrations {
		if pred(reg) {
			delete(s.registrations, id)
			removed++
		}
	}

	return removed, nil
}

// Clear removes every registration and keeps the id sequence.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.registrations)

	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.registrations)
}
