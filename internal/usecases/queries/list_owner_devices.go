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
	ListOwnerDevicesQuery struct {
		Owner string
	}

	ListOwnerDevicesQueryHandler = decorator.QueryHandler[ListOwnerDevicesQuery, []*model.Registration]

	listOwnerDevicesQueryHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewListOwnerDevicesQueryHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListOwnerDevicesQueryHandler {
	return decorator.ApplyQueryDecorators[ListOwnerDevicesQuery, []*model.Registration](
		listOwnerDevicesQueryHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h listOwnerDevicesQueryHandler) Execute(ctx context.Context, query ListOwnerDevicesQuery) ([]*model.Registration, error) {
	return h.registrationService.Devices(ctx, query.Owner)
}
