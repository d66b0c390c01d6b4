package services

import (
	"context"
	"errors"

	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/cenkalti/backoff/v5"
)

// EnrollmentService drives a DeviceRepository on behalf of the login flow.
// Only unavailable-store failures are retried; corrupt data never is.
type EnrollmentService struct {
	repo   ports.DeviceRepository
	retry  config.Retry
	clock  clock.Clock
	logger logger.Logger
}

func NewEnrollmentService(
	repo ports.DeviceRepository,
	retryCfg config.Retry,
	clk clock.Clock,
	log logger.Logger,
) *EnrollmentService {
	if clk == nil {
		clk = clock.System()
	}

	return &EnrollmentService{
		repo:   repo,
		retry:  retryCfg,
		clock:  clk,
		logger: log.Component("enrollment_service"),
	}
}

// Enroll registers the key. The creation time is stamped once and the context
// gets one idempotency key, so every attempt sends the same request and a
// remote store can replay a write it already applied.
func (s *EnrollmentService) Enroll(ctx context.Context, enrollment ports.Enrollment) (*model.Registration, error) {
	reg := model.NewRegistration(enrollment.Owner, enrollment.PublicKeyMaterial).WithLabel(enrollment.Label)
	if enrollment.Variant != "" {
		reg.WithVariant(enrollment.Variant)
	}

	reg.Extensions = enrollment.Extensions
	reg.CreatedAt = s.clock.Now()

	if err := reg.Validate(); err != nil {
		return nil, err
	}

	ctx, _ = idempotency.EnsureKey(ctx)

	return withRetry(ctx, s, "register_device", func() (*model.Registration, error) {
		return s.repo.RegisterDevice(ctx, reg)
	})
}

func (s *EnrollmentService) Devices(ctx context.Context, owner string) ([]*model.Registration, error) {
	return withRetry(ctx, s, "get_registered_devices", func() ([]*model.Registration, error) {
		return s.repo.GetRegisteredDevices(ctx, owner)
	})
}

func (s *EnrollmentService) Device(ctx context.Context, id model.RegistrationID) (*model.Registration, error) {
	return withRetry(ctx, s, "get_registered_device", func() (*model.Registration, error) {
		return s.repo.GetRegisteredDevice(ctx, id)
	})
}

// IsEnrolled answers false for an owner without active keys and propagates
// every store failure.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, owner string) (bool, error) {
	activated, err := withRetry(ctx, s, "is_activated", func() (bool, error) {
		return s.repo.IsActivated(ctx, owner)
	})
	if errors.Is(err, model.ErrRegistrationNotFound) {
		return false, nil
	}

	return activated, err
}

func (s *EnrollmentService) Revoke(ctx context.Context, id model.RegistrationID) error {
	_, err := withRetry(ctx, s, "remove_device", func() (struct{}, error) {
		return struct{}{}, s.repo.RemoveDevice(ctx, id)
	})

	return err
}

func (s *EnrollmentService) RevokeAll(ctx context.Context, owner string) error {
	_, err := withRetry(ctx, s, "remove_all", func() (struct{}, error) {
		return struct{}{}, s.repo.RemoveAll(ctx, owner)
	})

	return err
}

func (s *EnrollmentService) PurgeExpired(ctx context.Context) (int, error) {
	return withRetry(ctx, s, "purge_expired", func() (int, error) {
		return s.repo.PurgeExpired(ctx)
	})
}

func (s *EnrollmentService) newBackOff() *backoff.ExponentialBackOff {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.retry.InitialInterval
	expBackoff.Multiplier = s.retry.Multiplier
	expBackoff.RandomizationFactor = s.retry.Jitter
	expBackoff.MaxInterval = s.retry.MaxInterval

	return expBackoff
}

func withRetry[T any](ctx context.Context, s *EnrollmentService, action string, call func() (T, error)) (T, error) {
	attempt := 0

	operation := func() (T, error) {
		attempt++

		result, err := call()
		if err == nil {
			return result, nil
		}

		if !model.IsRetryable(err) {
			return result, backoff.Permanent(err)
		}

		s.logger.WithContext(ctx).Warn().
			Err(err).
			Str("action", action).
			Int("attempt", attempt).
			Msg("registration store unavailable")

		return result, err
	}

	maxTries := s.retry.MaxAttempts
	if maxTries == 0 {
		maxTries = 1
	}

	return backoff.Retry(ctx, operation,
		backoff.WithMaxTries(maxTries),
		backoff.WithBackOff(s.newBackOff()),
	)
}
