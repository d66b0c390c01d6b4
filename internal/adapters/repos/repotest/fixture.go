// Package repotest holds the behavioural suite every DeviceRepository backend
// must pass unchanged.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
)

type (
	// Factory builds a repository bound to the given clock and policy. It is
	// called several times per scenario and every instance must share one medium.
	Factory func(t *testing.T, clk clock.Clock, policy model.ExpirationPolicy) ports.DeviceRepository

	// ResetFunc empties the medium and rewinds its id sequence.
	ResetFunc func(ctx context.Context) error

	// Fixture owns the shared medium state between scenarios.
	Fixture struct {
		mu    sync.Mutex
		reset ResetFunc
	}

	SeedEntry struct {
		Owner string
		Key   string
		Label string
	}
)

// Epoch is the instant every scenario starts at.
var Epoch = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

// Seed is the deterministic data set prepared by Fixture.ResetAndSeed.
var Seed = []SeedEntry{
	{Owner: "alice", Key: "alice-key-1", Label: "yubikey"},
	{Owner: "alice", Key: "alice-key-2", Label: "backup"},
	{Owner: "bob", Key: "bob-key-1", Label: "nfc"},
}

func NewFixture(reset ResetFunc) *Fixture {
	return &Fixture{reset: reset}
}

func (f *Fixture) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reset(ctx)
}

// ResetAndSeed empties the medium and registers Seed through repo as one
// critical section, returning the persisted registrations in Seed order.
func (f *Fixture) ResetAndSeed(ctx context.Context, repo ports.DeviceRepository) ([]*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reset(ctx); err != nil {
		return nil, fmt.Errorf("resetting store: %w", err)
	}

	seeded := make([]*model.Registration, 0, len(Seed))

	for _, entry := range Seed {
		reg, err := repo.RegisterDevice(ctx, model.NewRegistration(entry.Owner, entry.Key).WithLabel(entry.Label))
		if err != nil {
			return nil, fmt.Errorf("seeding %s: %w", entry.Key, err)
		}

		seeded = append(seeded, reg)
	}

	return seeded, nil
}
