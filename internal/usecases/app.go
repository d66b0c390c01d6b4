package usecases

import (
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/internal/usecases/commands"
	"github.com/architeacher/u2f-registrations/internal/usecases/queries"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		RegisterDevice     commands.RegisterDeviceCommandHandler
		RemoveDevice       commands.RemoveDeviceCommandHandler
		RemoveOwnerDevices commands.RemoveOwnerDevicesCommandHandler
		PurgeExpired       commands.PurgeExpiredCommandHandler
	}

	Queries struct {
		ListOwnerDevices queries.ListOwnerDevicesQueryHandler
		GetDevice        queries.GetDeviceQueryHandler
		IsActivated      queries.IsActivatedQueryHandler
		FetchHealth      queries.FetchHealthQueryHandler
	}

	Application struct {
		Commands Commands
		Queries  Queries
	}
)

func NewApplication(
	registrationSvc ports.RegistrationService,
	healthCheckers map[string]ports.HealthChecker,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient metrics.Client,
) *Application {
	return &Application{
		Commands: Commands{
			RegisterDevice:     commands.NewRegisterDeviceCommandHandler(registrationSvc, log, metricsClient, tracerProvider),
			RemoveDevice:       commands.NewRemoveDeviceCommandHandler(registrationSvc, log, metricsClient, tracerProvider),
			RemoveOwnerDevices: commands.NewRemoveOwnerDevicesCommandHandler(registrationSvc, log, metricsClient, tracerProvider),
			PurgeExpired:       commands.NewPurgeExpiredCommandHandler(registrationSvc, log, metricsClient, tracerProvider),
		},
		Queries: Queries{
			ListOwnerDevices: queries.NewListOwnerDevicesQueryHandler(registrationSvc, log, metricsClient, tracerProvider),
			GetDevice:        queries.NewGetDeviceQueryHandler(registrationSvc, log, metricsClient, tracerProvider),
			IsActivated:      queries.NewIsActivatedQueryHandler(registrationSvc, log, metricsClient, tracerProvider),
			FetchHealth:      queries.NewFetchHealthQueryHandler(healthCheckers, log, metricsClient, tracerProvider),
		},
	}
}
