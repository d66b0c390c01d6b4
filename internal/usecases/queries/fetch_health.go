package queries

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/decorator"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

type (
	FetchHealthQuery struct{}

	HealthResult struct {
		Status       string                            `json:"status"`
		Version      string                            `json:"version"`
		Uptime       string                            `json:"uptime"`
		Dependencies map[string]ports.DependencyStatus `json:"dependencies"`
	}

	FetchHealthQueryHandler = decorator.QueryHandler[FetchHealthQuery, *HealthResult]

	fetchHealthQueryHandler struct {
		checkers  map[string]ports.HealthChecker
		startTime time.Time
	}
)

// NewFetchHealthQueryHandler reports on every named dependency. The map is
// copied so later changes by the caller are not observed.
func NewFetchHealthQueryHandler(
	checkers map[string]ports.HealthChecker,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchHealthQueryHandler {
	return decorator.ApplyQueryDecorators[FetchHealthQuery, *HealthResult](
		fetchHealthQueryHandler{
			checkers:  maps.Clone(checkers),
			startTime: time.Now(),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h fetchHealthQueryHandler) Execute(ctx context.Context, _ FetchHealthQuery) (*HealthResult, error) {
	dependencies := make(map[string]ports.DependencyStatus, len(h.checkers))
	overallStatus := HealthStatusHealthy

	for _, name := range slices.Sorted(maps.Keys(h.checkers)) {
		start := time.Now()
		err := h.checkers[name].Ping(ctx)
		latency := time.Since(start)

		status := ports.DependencyStatus{
			Healthy: err == nil,
			Latency: fmt.Sprintf("%dms", latency.Milliseconds()),
		}

		if err != nil {
			status.Message = err.Error()
			overallStatus = HealthStatusUnhealthy
		}

		dependencies[name] = status
	}

	return &HealthResult{
		Status:       overallStatus,
		Version:      config.ServiceVersion,
		Uptime:       time.Since(h.startTime).String(),
		Dependencies: dependencies,
	}, nil
}
