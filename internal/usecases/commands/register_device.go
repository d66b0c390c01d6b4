package commands

import (
	"context"

	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/decorator"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	RegisterDeviceCommand struct {
		Enrollment ports.Enrollment
	}

	RegisterDeviceCommandHandler = decorator.CommandHandler[RegisterDeviceCommand, *model.Registration]

	registerDeviceCommandHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewRegisterDeviceCommandHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) RegisterDeviceCommandHandler {
	return decorator.ApplyCommandDecorators[RegisterDeviceCommand, *model.Registration](
		registerDeviceCommandHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h registerDeviceCommandHandler) Handle(ctx context.Context, cmd RegisterDeviceCommand) (*model.Registration, error) {
	return h.registrationService.Enroll(ctx, cmd.Enrollment)
}
