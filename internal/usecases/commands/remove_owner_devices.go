package commands

import (
	"context"

	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/decorator"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	RemoveOwnerDevicesCommand struct {
		Owner string
	}

	RemoveOwnerDevicesCommandHandler = decorator.CommandHandler[RemoveOwnerDevicesCommand, struct{}]

	removeOwnerDevicesCommandHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewRemoveOwnerDevicesCommandHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) RemoveOwnerDevicesCommandHandler {
	return decorator.ApplyCommandDecorators[RemoveOwnerDevicesCommand, struct{}](
		removeOwnerDevicesCommandHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h removeOwnerDevicesCommandHandler) Handle(ctx context.Context, cmd RemoveOwnerDevicesCommand) (struct{}, error) {
	return struct{}{}, h.registrationService.RevokeAll(ctx, cmd.Owner)
}
