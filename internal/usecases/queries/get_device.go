package queries

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
	GetDeviceQuery struct {
		ID model.RegistrationID
	}

	GetDeviceQueryHandler = decorator.QueryHandler[GetDeviceQuery, *model.Registration]

	getDeviceQueryHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewGetDeviceQueryHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetDeviceQueryHandler {
	return decorator.ApplyQueryDecorators[GetDeviceQuery, *model.Registration](
		getDeviceQueryHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h getDeviceQueryHandler) Execute(ctx context.Context, query GetDeviceQuery) (*model.Registration, error) {
	return h.registrationService.Device(ctx, query.ID)
}
