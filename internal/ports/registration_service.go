package ports

import (
	"context"
	"encoding/json"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
)

// Enrollment describes a key a user wants to bind to their account.
type Enrollment struct {
	Owner             string
	Variant           model.Variant
	PublicKeyMaterial string
	Label             string
	Extensions        map[string]json.RawMessage
}

// RegistrationService is the business facade the use cases drive.
type RegistrationService interface {
	// Enroll registers a new key for the owner.
	Enroll(ctx context.Context, enrollment Enrollment) (*model.Registration, error)

	// Devices lists the owner's active registrations.
	Devices(ctx context.Context, owner string) ([]*model.Registration, error)

	// Device fetches one active registration.
	Device(ctx context.Context, id model.RegistrationID) (*model.Registration, error)

	// IsEnrolled reports whether the owner has at least one active key.
	IsEnrolled(ctx context.Context, owner string) (bool, error)

	// Revoke removes one registration.
	Revoke(ctx context.Context, id model.RegistrationID) error

	// RevokeAll removes every registration of the owner.
	RevokeAll(ctx context.Context, owner string) error

	// PurgeExpired runs one cleanup pass and returns how many registrations it removed.
	PurgeExpired(ctx context.Context) (int, error)
}
