package commands_test

import (
	"context"
	"testing"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/internal/usecases/commands"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics/noop"
	"github.com/stretchr/testify/require"
)

type mockRegistrationService struct {
	ports.RegistrationService

	enrollFn       func(ctx context.Context, enrollment ports.Enrollment) (*model.Registration, error)
	revokeFn       func(ctx context.Context, id model.RegistrationID) error
	revokeAllFn    func(ctx context.Context, owner string) error
	purgeExpiredFn func(ctx context.Context) (int, error)
}

func (m *mockRegistrationService) Enroll(ctx context.Context, enrollment ports.Enrollment) (*model.Registration, error) {
	if m.enrollFn != nil {
		return m.enrollFn(ctx, enrollment)
	}

	reg := model.NewRegistration(enrollment.Owner, enrollment.PublicKeyMaterial)
	reg.ID = 1

	return reg, nil
}

func (m *mockRegistrationService) Revoke(ctx context.Context, id model.RegistrationID) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id)
	}

	return nil
}

func (m *mockRegistrationService) RevokeAll(ctx context.Context, owner string) error {
	if m.revokeAllFn != nil {
		return m.revokeAllFn(ctx, owner)
	}

	return nil
}

func (m *mockRegistrationService) PurgeExpired(ctx context.Context) (int, error) {
	if m.purgeExpiredFn != nil {
		return m.purgeExpiredFn(ctx)
	}

	return 0, nil
}

func TestRegisterDeviceCommandHandler(t *testing.T) {
	t.Parallel()

	log := logger.NewTestLogger()
	tp := infrastructure.NewNoopTracerProvider()
	mc := noop.NewMetricsClient()

	cases := []struct {
		name        string
		cmd         commands.RegisterDeviceCommand
		setupSvc    func(*mockRegistrationService)
		expectedErr error
	}{
		{
			name: "registers the enrollment",
			cmd: commands.RegisterDeviceCommand{
				Enrollment: ports.Enrollment{Owner: "alice", PublicKeyMaterial: "K1"},
			},
			setupSvc: func(*mockRegistrationService) {},
		},
		{
			name: "propagates validation errors",
			cmd: commands.RegisterDeviceCommand{
				Enrollment: ports.Enrollment{Owner: "alice"},
			},
			setupSvc: func(m *mockRegistrationService) {
				m.enrollFn = func(context.Context, ports.Enrollment) (*model.Registration, error) {
					return nil, model.ErrInvalidRegistration
				}
			},
			expectedErr: model.ErrInvalidRegistration,
		},
		{
			name: "propagates store failures",
			cmd: commands.RegisterDeviceCommand{
				Enrollment: ports.Enrollment{Owner: "alice", PublicKeyMaterial: "K1"},
			},
			setupSvc: func(m *mockRegistrationService) {
				m.enrollFn = func(context.Context, ports.Enrollment) (*model.Registration, error) {
					return nil, model.ErrStoreUnavailable
				}
			},
			expectedErr: model.ErrStoreUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockRegistrationService{}
			tc.setupSvc(svc)

			handler := commands.NewRegisterDeviceCommandHandler(svc, log, mc, tp)
			reg, err := handler.Handle(context.Background(), tc.cmd)

			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				require.Nil(t, reg)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.cmd.Enrollment.Owner, reg.Owner)
		})
	}
}

func TestRemoveCommandHandlers(t *testing.T) {
	t.Parallel()

	log := logger.NewTestLogger()
	tp := infrastructure.NewNoopTracerProvider()
	mc := noop.NewMetricsClient()

	var (
		revokedID    model.RegistrationID
		revokedOwner string
	)

	svc := &mockRegistrationService{
		revokeFn: func(_ context.Context, id model.RegistrationID) error {
			revokedID = id

			return nil
		},
		revokeAllFn: func(_ context.Context, owner string) error {
			revokedOwner = owner

			return model.ErrStoreUnavailable
		},
	}

	_, err := commands.NewRemoveDeviceCommandHandler(svc, log, mc, tp).
		Handle(context.Background(), commands.RemoveDeviceCommand{ID: 42})
	require.NoError(t, err)
	require.Equal(t, model.RegistrationID(42), revokedID)

	_, err = commands.NewRemoveOwnerDevicesCommandHandler(svc, log, mc, tp).
		Handle(context.Background(), commands.RemoveOwnerDevicesCommand{Owner: "bob"})
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	require.Equal(t, "bob", revokedOwner)
}

func TestPurgeExpiredCommandHandler(t *testing.T) {
	t.Parallel()

	svc := &mockRegistrationService{
		purgeExpiredFn: func(context.Context) (int, error) { return 3, nil },
	}

	handler := commands.NewPurgeExpiredCommandHandler(
		svc,
		logger.NewTestLogger(),
		noop.NewMetricsClient(),
		infrastructure.NewNoopTracerProvider(),
	)

	result, err := handler.Handle(context.Background(), commands.PurgeExpiredCommand{})
	require.NoError(t, err)
	require.Equal(t, 3, result.Removed)
}
