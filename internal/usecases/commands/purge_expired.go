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
	PurgeExpiredCommand struct{}

	PurgeExpiredResult struct {
		Removed int `json:"removed"`
	}

	PurgeExpiredCommandHandler = decorator.CommandHandler[PurgeExpiredCommand, PurgeExpiredResult]

	purgeExpiredCommandHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewPurgeExpiredCommandHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) PurgeExpiredCommandHandler {
	return decorator.ApplyCommandDecorators[PurgeExpiredCommand, PurgeExpiredResult](
		purgeExpiredCommandHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h purgeExpiredCommandHandler) Handle(ctx context.Context, _ PurgeExpiredCommand) (PurgeExpiredResult, error) {
	removed, err := h.registrationService.PurgeExpired(ctx)
	if err != nil {
		return PurgeExpiredResult{}, err
	}

	return PurgeExpiredResult{Removed: removed}, nil
}
