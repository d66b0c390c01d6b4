package runtime

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	inboundhttp "github.com/architeacher/u2f-registrations/internal/adapters/inbound/http"
	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/resource"
	idempotencyrepo "github.com/architeacher/u2f-registrations/internal/adapters/repos/idempotency"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/memory"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/postgres"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/ratelimit"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/redis"
	"github.com/architeacher/u2f-registrations/internal/adapters/repos/rest"
	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/infrastructure"
	infraPostgres "github.com/architeacher/u2f-registrations/internal/infrastructure/postgres"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/internal/services"
	"github.com/architeacher/u2f-registrations/internal/usecases"
	"github.com/architeacher/u2f-registrations/pkg/circuitbreaker"
	"github.com/architeacher/u2f-registrations/pkg/clock"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics/noop"
	"github.com/architeacher/u2f-registrations/pkg/metrics/prometheus"
	"github.com/throttled/throttled/v2/store/memstore"
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithLogger(),
		WithClock(clock.System()),
		WithMetrics(),
		WithTracing(),
		WithCache(),
		WithDatabase(ctx),
		WithDeviceRepository(),
		WithResourceHandler(),
		WithRegistrationService(),
		WithApplication(),
		WithHTTPServer(),
	}
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithClock(clk clock.Clock) DependencyOption {
	return func(d *dependencies) error {
		d.infra.clock = clk

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Metrics.Enabled {
			d.infra.metricsClient = noop.NewMetricsClient()

			return nil
		}

		client := prometheus.NewClient(d.config.App.ServiceName)
		d.infra.metricsClient = client
		d.cleanupFuncs["metrics"] = client.Shutdown

		return nil
	}
}

func WithTracing() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Enabled || !d.config.Telemetry.Traces.Enabled {
			d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()

			return nil
		}

		tp, shutdown, err := infrastructure.NewTracerProvider(d.config.App, d.config.Telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.cleanupFuncs["tracer"] = shutdown

		return nil
	}
}

// WithCache connects to KeyDB when the repository or the idempotency store lives there.
func WithCache() DependencyOption {
	return func(d *dependencies) error {
		usesCache := d.config.Repository.Backend == config.BackendRedis ||
			(d.config.Resource.Serve && d.config.Idempotency.Enabled &&
				d.config.Idempotency.Store == config.IdempotencyStoreRedis)
		if !usesCache {
			return nil
		}

		client := infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger)
		d.infra.cacheClient = client
		d.cleanupFuncs["cache"] = func(context.Context) error {
			return client.Close()
		}

		return nil
	}
}

// WithDatabase opens the connection pool and applies the schema for the postgres backend.
func WithDatabase(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if d.config.Repository.Backend != config.BackendPostgres {
			return nil
		}

		pool, err := infraPostgres.NewPool(ctx, d.config.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}

		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()

			return fmt.Errorf("migrating database: %w", err)
		}

		d.infra.dbPool = pool
		d.cleanupFuncs["database"] = func(context.Context) error {
			pool.Close()

			return nil
		}

		return nil
	}
}

func WithDeviceRepository() DependencyOption {
	return func(d *dependencies) error {
		policy := model.NewExpirationPolicy(d.config.Repository.ExpireAfter)

		switch d.config.Repository.Backend {
		case config.BackendMemory:
			store := memory.NewStore(d.infra.clock)
			d.repos.resourceStore = store
			d.repos.deviceRepo = memory.NewRepository(store, d.infra.clock, policy, d.infra.logger)
		case config.BackendREST:
			repo, err := rest.NewRepository(rest.Config{
				BaseURL: d.config.Resource.URL,
				Timeout: d.config.Resource.Timeout,
				CircuitBreaker: circuitbreaker.Config{
					Name:             "registration-resource",
					Enabled:          d.config.Resource.CircuitBreaker.Enabled,
					MaxRequests:      d.config.Resource.CircuitBreaker.MaxRequests,
					Interval:         d.config.Resource.CircuitBreaker.Interval,
					Timeout:          d.config.Resource.CircuitBreaker.Timeout,
					FailureThreshold: d.config.Resource.CircuitBreaker.FailureThreshold,
				},
			}, d.infra.clock, policy, d.infra.logger)
			if err != nil {
				return fmt.Errorf("creating rest repository: %w", err)
			}

			d.repos.deviceRepo = repo
		case config.BackendPostgres:
			d.repos.deviceRepo = postgres.NewRepository(
				d.infra.dbPool,
				postgres.NewPgxScanner(),
				d.infra.clock,
				policy,
				d.infra.logger,
			)
		case config.BackendRedis:
			d.repos.deviceRepo = redis.NewRepository(
				d.infra.cacheClient.Redis(),
				d.config.Cache.KeyPrefix,
				d.infra.clock,
				policy,
				d.infra.logger,
			)
		default:
			return fmt.Errorf("unknown repository backend %q", d.config.Repository.Backend)
		}

		d.infra.logger.Info().
			Str("backend", d.config.Repository.Backend).
			Dur("expire_after", d.config.Repository.ExpireAfter).
			Msg("device repository ready")

		return nil
	}
}

// WithResourceHandler serves the registration resource from this process.
// The memory backend shares its store with the resource so both views agree.
func WithResourceHandler() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Resource.Serve {
			return nil
		}

		if d.repos.resourceStore == nil {
			d.repos.resourceStore = memory.NewStore(d.infra.clock)
		}

		var middlewares []func(http.Handler) http.Handler

		if d.config.ThrottledRateLimiting.Enabled {
			if err := d.initRateLimitStore(); err != nil {
				return err
			}

			limit, err := middleware.ThrottledRateLimiting(
				d.config.ThrottledRateLimiting,
				d.repos.rateLimitStore,
				d.infra.logger,
			)
			if err != nil {
				return fmt.Errorf("creating rate limiter: %w", err)
			}

			middlewares = append(middlewares, limit)
		}

		if d.config.Idempotency.Enabled {
			if d.config.Idempotency.Store == config.IdempotencyStoreRedis {
				d.repos.idempotencyRepo = idempotencyrepo.NewRedisStore(d.infra.cacheClient)
			} else {
				d.repos.idempotencyRepo = idempotencyrepo.NewMemoryStore(d.infra.clock)
			}

			middlewares = append(middlewares, middleware.Idempotency(
				d.repos.idempotencyRepo,
				d.config.Idempotency,
				d.infra.logger,
			))
		}

		d.resourceHandler = resource.NewRouter(d.repos.resourceStore, d.infra.logger, middlewares...)

		return nil
	}
}

func (d *dependencies) initRateLimitStore() error {
	if d.infra.cacheClient != nil {
		d.repos.rateLimitStore = ratelimit.NewRedisStore(d.infra.cacheClient, d.config.Cache.KeyPrefix)

		return nil
	}

	store, err := memstore.NewCtx(d.config.ThrottledRateLimiting.MaxKeys)
	if err != nil {
		return fmt.Errorf("creating rate limit store: %w", err)
	}

	d.repos.rateLimitStore = store

	return nil
}

func WithRegistrationService() DependencyOption {
	return func(d *dependencies) error {
		d.services.registrations = services.NewEnrollmentService(
			d.repos.deviceRepo,
			d.config.Retry,
			d.infra.clock,
			d.infra.logger,
		)

		d.services.purger = services.NewPurger(
			d.repos.deviceRepo,
			d.config.Repository.PurgeInterval,
			d.infra.metricsClient,
			d.infra.logger,
		)

		d.services.healthCheckers = map[string]ports.HealthChecker{
			"repository": d.repos.deviceRepo,
		}

		if d.infra.cacheClient != nil {
			d.services.healthCheckers["cache"] = d.infra.cacheClient
		}

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		d.app = usecases.NewApplication(
			d.services.registrations,
			d.services.healthCheckers,
			d.infra.logger,
			d.infra.tracerProvider,
			d.infra.metricsClient,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		router := inboundhttp.NewRouter(inboundhttp.RouterConfig{
			App:           d.app,
			Logger:        d.infra.logger,
			MetricsClient: d.infra.metricsClient,
			Config:        d.config,
			Resource:      d.resourceHandler,
		})

		d.infra.httpServer = &http.Server{
			Addr:         net.JoinHostPort(d.config.HTTPServer.Host, strconv.FormatUint(uint64(d.config.HTTPServer.Port), 10)),
			Handler:      router,
			ReadTimeout:  d.config.HTTPServer.ReadTimeout,
			WriteTimeout: d.config.HTTPServer.WriteTimeout,
			IdleTimeout:  d.config.HTTPServer.IdleTimeout,
		}

		d.cleanupFuncs["http_server"] = d.infra.httpServer.Shutdown

		return nil
	}
}
