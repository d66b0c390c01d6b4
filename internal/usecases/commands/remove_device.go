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
	RemoveDeviceCommand struct {
		ID model.RegistrationID
	}

	RemoveDeviceCommandHandler = decorator.CommandHandler[RemoveDeviceCommand, struct{}]

	removeDeviceCommandHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewRemoveDeviceCommandHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) RemoveDeviceCommandHandler {
	return decorator.ApplyCommandDecorators[RemoveDeviceCommand, struct{}](
		removeDeviceCommandHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h removeDeviceCommandHandler) Handle(ctx context.Context, cmd RemoveDeviceCommand) (struct{}, error) {
	return struct{}{}, h.registrationService.Revoke(ctx, cmd.ID)
}
