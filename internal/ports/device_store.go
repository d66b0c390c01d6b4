package ports

import (
	"context"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
)

// DeviceStore is the physical medium behind the resource protocol. It knows
// nothing about expiration and returns every stored registration.
type DeviceStore interface {
	// Insert assigns fresh ids to the given registrations and stores them.
	Insert(ctx context.Context, regs ...*model.Registration) ([]*model.Registration, error)
	All(ctx context.Context) ([]*model.Registration, error)
	Delete(ctx context.Context, id model.RegistrationID) error
	DeleteByOwner(ctx context.Context, owner string) error
	Clear(ctx context.Context) error
}
