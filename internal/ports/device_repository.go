package ports

import (
	"context"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
)

type (
	Registrar interface {
		// RegisterDevice persists a new registration and returns it with its assigned id.
		RegisterDevice(ctx context.Context, reg *model.Registration) (*model.Registration, error)
	}

	Fetcher interface {
		// GetRegisteredDevice returns the registration or model.ErrRegistrationNotFound
		// when it is absent or expired.
		GetRegisteredDevice(ctx context.Context, id model.RegistrationID) (*model.Registration, error)
	}

	Finder interface {
		// GetRegisteredDevices returns the owner's non-expired registrations, never nil.
		GetRegisteredDevices(ctx context.Context, owner string) ([]*model.Registration, error)

		// ListRegisteredDevices returns every non-expired registration, never nil.
		ListRegisteredDevices(ctx context.Context) ([]*model.Registration, error)

		// IsActivated reports whether the owner has at least one non-expired registration.
		IsActivated(ctx context.Context, owner string) (bool, error)
	}

	Remover interface {
		// RemoveDevice deletes one registration. Removing an unknown id is not an error.
		RemoveDevice(ctx context.Context, id model.RegistrationID) error

		// RemoveAll deletes every registration bound to owner.
		RemoveAll(ctx context.Context, owner string) error
	}

	Cleaner interface {
		// PurgeExpired physically deletes expired registrations and returns how many were removed.
		PurgeExpired(ctx context.Context) (int, error)

		// Clear deletes every registration of every owner.
		Clear(ctx context.Context) error
	}

	// DeviceRepository is the contract every storage backend satisfies identically.
	DeviceRepository interface {
		Registrar
		Fetcher
		Finder
		Remover
		Cleaner
	}
)
