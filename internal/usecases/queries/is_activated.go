package queries

import (
	"context"

	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/decorator"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	IsActivatedQuery struct {
		Owner string
	}

	ActivationResult struct {
		Owner     string `json:"owner"`
		Activated bool   `json:"activated"`
	}

	IsActivatedQueryHandler = decorator.QueryHandler[IsActivatedQuery, ActivationResult]

	isActivatedQueryHandler struct {
		registrationService ports.RegistrationService
	}
)

func NewIsActivatedQueryHandler(
	svc ports.RegistrationService,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) IsActivatedQueryHandler {
	return decorator.ApplyQueryDecorators[IsActivatedQuery, ActivationResult](
		isActivatedQueryHandler{registrationService: svc},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h isActivatedQueryHandler) Execute(ctx context.Context, query IsActivatedQuery) (ActivationResult, error) {
	activated, err := h.registrationService.IsEnrolled(ctx, query.Owner)
	if err != nil {
		return ActivationResult{}, err
	}

	return ActivationResult{Owner: query.Owner, Activated: activated}, nil
}
