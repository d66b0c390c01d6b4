package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/architeacher/u2f-registrations/internal/adapters/repos/memory"
	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/internal/services"
	"github.com/architeacher/u2f-registrations/internal/usecases"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/throttled/throttled/v2"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	// repository is a device repository that can also report its own health.
	repository interface {
		ports.DeviceRepository
		ports.HealthChecker
	}

	infrastructureDep struct {
		httpServer     *http.Server
		dbPool         *pgxpool.Pool
		cacheClient    *infrastructure.KeydbClient
		clock          clock.Clock
		logger         logger.Logger
		metricsClient  metrics.Client
		tracerProvider otelTrace.TracerProvider
	}

	repositories struct {
		deviceRepo      repository
		resourceStore   *memory.Store
		idempotencyRepo idempotency.Store
		rateLimitStore  throttled.GCRAStoreCtx
	}

	servicesDep struct {
		registrations  *services.EnrollmentService
		purger         *services.Purger
		healthCheckers map[string]ports.HealthChecker
	}

	dependencies struct {
		config *config.ServiceConfig

		infra infrastructureDep

		repos repositories

		services servicesDep

		app *usecases.Application

		resourceHandler http.Handler

		cleanupFuncs map[string]func(ctx context.Context) error
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{
		cleanupFuncs: make(map[string]func(ctx context.Context) error),
	}

	allOpts := append(defaultOptions(ctx), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}
