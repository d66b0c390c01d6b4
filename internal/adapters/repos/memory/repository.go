package memory

import (
	"context"
	"fmt"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
)

// Repository serves the device repository contract straight from a Store.
type Repository struct {
	store  *Store
	clock  clock.Clock
	policy model.ExpirationPolicy
	logger logger.Logger
}

func NewRepository(store *Store, clk clock.Clock, policy model.ExpirationPolicy, log logger.Logger) *Repository {
	if clk == nil {
		clk = clock.System()
	}

	return &Repository{
		store:  store,
		clock:  clk,
		policy: policy,
		logger: log.Component("memory_repository"),
	}
}

func (r *Repository) RegisterDevice(ctx context.Context, reg *model.Registration) (*model.Registration, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	candidate := reg.Clone()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = r.clock.Now()
	}

	persisted, err := r.store.Insert(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if len(persisted) != 1 {
		return nil, fmt.Errorf("%w: store persisted %d registrations", model.ErrCorruptData, len(persisted))
	}

	r.logger.Debug().
		Str("owner", reg.Owner).
		Stringer("id", persisted[0].ID).
		Msg("registration stored")

	return persisted[0], nil
}

func (r *Repository) GetRegisteredDevice(ctx context.Context, id model.RegistrationID) (*model.Registration, error) {
	reg, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.policy.IsExpired(reg, r.clock.Now()) {
		return nil, model.ErrRegistrationNotFound
	}

	return reg, nil
}

func (r *Repository) GetRegisteredDevices(ctx context.Context, owner string) ([]*model.Registration, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}

	return r.policy.Active(model.FilterByOwner(all, owner), r.clock.Now()), nil
}

func (r *Repository) ListRegisteredDevices(ctx context.Context) ([]*model.Registration, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}

	return r.policy.Active(all, r.clock.Now()), nil
}

func (r *Repository) IsActivated(ctx context.Context, owner string) (bool, error) {
	regs, err := r.GetRegisteredDevices(ctx, owner)
	if err != nil {
		return false, err
	}

	return len(regs) > 0, nil
}

func (r *Repository) RemoveDevice(ctx context.Context, id model.RegistrationID) error {
	return r.store.Delete(ctx, id)
}

func (r *Repository) RemoveAll(ctx context.Context, owner string) error {
	return r.store.DeleteByOwner(ctx, owner)
}

func (r *Repository) PurgeExpired(ctx context.Context) (int, error) {
	now := r.clock.Now()

	removed, err := r.store.DeleteIf(ctx, func(reg *model.Registration) bool {
		return r.policy.IsExpired(reg, now)
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("expired registrations purged")
	}

	return removed, nil
}

func (r *Repository) Clear(ctx context.Context) error {
	return r.store.Clear(ctx)
}

// Ping always succeeds; the store lives in process.
func (r *Repository) Ping(context.Context) error {
	return nil
}
