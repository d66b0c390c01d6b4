package queries_test

import (
	"context"
	"errors"
	"testing"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/internal/usecases/queries"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics/noop"
	"github.com/stretchr/testify/require"
)

type (
	mockRegistrationService struct {
		ports.RegistrationService

		devices   map[string][]*model.Registration
		enrolled  map[string]bool
		enrollErr error
	}

	pingFunc func(ctx context.Context) error
)

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func (m *mockRegistrationService) Devices(_ context.Context, owner string) ([]*model.Registration, error) {
	devices, ok := m.devices[owner]
	if !ok {
		return []*model.Registration{}, nil
	}

	return devices, nil
}

func (m *mockRegistrationService) Device(_ context.Context, id model.RegistrationID) (*model.Registration, error) {
	for _, devices := range m.devices {
		for _, reg := range devices {
			if reg.ID == id {
				return reg, nil
			}
		}
	}

	return nil, model.ErrRegistrationNotFound
}

func (m *mockRegistrationService) IsEnrolled(_ context.Context, owner string) (bool, error) {
	if m.enrollErr != nil {
		return false, m.enrollErr
	}

	return m.enrolled[owner], nil
}

func newService() *mockRegistrationService {
	reg := model.NewRegistration("alice", "K1")
	reg.ID = 7

	return &mockRegistrationService{
		devices:  map[string][]*model.Registration{"alice": {reg}},
		enrolled: map[string]bool{"alice": true},
	}
}

func TestListOwnerDevicesQueryHandler(t *testing.T) {
	t.Parallel()

	handler := queries.NewListOwnerDevicesQueryHandler(
		newService(), logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
	)

	cases := []struct {
		owner    string
		expected int
	}{
		{owner: "alice", expected: 1},
		{owner: "bob", expected: 0},
	}

	for _, tc := range cases {
		t.Run(tc.owner, func(t *testing.T) {
			t.Parallel()

			regs, err := handler.Execute(context.Background(), queries.ListOwnerDevicesQuery{Owner: tc.owner})
			require.NoError(t, err)
			require.NotNil(t, regs)
			require.Len(t, regs, tc.expected)
		})
	}
}

func TestGetDeviceQueryHandler(t *testing.T) {
	t.Parallel()

	handler := queries.NewGetDeviceQueryHandler(
		newService(), logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
	)

	reg, err := handler.Execute(context.Background(), queries.GetDeviceQuery{ID: 7})
	require.NoError(t, err)
	require.Equal(t, "alice", reg.Owner)

	_, err = handler.Execute(context.Background(), queries.GetDeviceQuery{ID: 8})
	require.ErrorIs(t, err, model.ErrRegistrationNotFound)
}

func TestIsActivatedQueryHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		owner       string
		enrollErr   error
		expected    bool
		expectedErr error
	}{
		{name: "enrolled owner", owner: "alice", expected: true},
		{name: "unknown owner", owner: "bob", expected: false},
		{name: "store failure", owner: "alice", enrollErr: model.ErrCorruptData, expectedErr: model.ErrCorruptData},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newService()
			svc.enrollErr = tc.enrollErr

			handler := queries.NewIsActivatedQueryHandler(
				svc, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
			)

			result, err := handler.Execute(context.Background(), queries.IsActivatedQuery{Owner: tc.owner})
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.owner, result.Owner)
			require.Equal(t, tc.expected, result.Activated)
		})
	}
}

func TestFetchHealthQueryHandler(t *testing.T) {
	t.Parallel()

	healthy := pingFunc(func(context.Context) error { return nil })
	failing := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name           string
		checkers       map[string]ports.HealthChecker
		expectedStatus string
	}{
		{
			name:           "all dependencies healthy",
			checkers:       map[string]ports.HealthChecker{"repository": healthy, "cache": healthy},
			expectedStatus: queries.HealthStatusHealthy,
		},
		{
			name:           "one failing dependency",
			checkers:       map[string]ports.HealthChecker{"repository": failing, "cache": healthy},
			expectedStatus: queries.HealthStatusUnhealthy,
		},
		{
			name:           "no dependencies",
			checkers:       nil,
			expectedStatus: queries.HealthStatusHealthy,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := queries.NewFetchHealthQueryHandler(
				tc.checkers, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
			)

			result, err := handler.Execute(context.Background(), queries.FetchHealthQuery{})
			require.NoError(t, err)
			require.Equal(t, tc.expectedStatus, result.Status)
			require.Len(t, result.Dependencies, len(tc.checkers))

			for name, status := range result.Dependencies {
				require.Equal(t, status.Healthy, status.Message == "", name)
			}
		})
	}
}
