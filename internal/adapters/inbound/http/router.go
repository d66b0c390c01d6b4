package http

import (
	"net/http"

	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/internal/usecases"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	baseURL      = "/v1"
	resourcePath = "/resource"
)

type RouterConfig struct {
	App           *usecases.Application
	Logger        logger.Logger
	MetricsClient metrics.Client
	Config        *config.ServiceConfig
	// Resource, when set, is mounted under /resource.
	Resource http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))

	if cfg.Config.Telemetry.Metrics.Enabled {
		router.Use(middleware.Metrics(cfg.MetricsClient))
		cfg.Logger.Info().Msg("HTTP metrics collection enabled")
	}

	if cfg.Config.Logging.AccessLog.Enabled {
		router.Use(middleware.AccessLogger(cfg.Logger, cfg.Config.Logging.AccessLog.IncludeQueryParams))
	}

	registrations := handlers.NewRegistrationHandler(cfg.App, cfg.Logger)
	admin := handlers.NewAdminHandler(cfg.App, cfg.Logger)

	router.Route(baseURL, func(r chi.Router) {
		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Get("/devices", registrations.ListOwnerDevices)
			r.Post("/devices", registrations.RegisterDevice)
			r.Delete("/devices", registrations.RemoveOwnerDevices)
			r.Get("/activation", registrations.GetActivation)
		})

		r.Get("/devices/{id}", registrations.GetDevice)
		r.Delete("/devices/{id}", registrations.RemoveDevice)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Post("/purge", admin.Purge)
		r.Get("/health", admin.Health)
	})

	if cfg.Config.Telemetry.Metrics.Enabled {
		router.Handle("/metrics", cfg.MetricsClient.Handler())
	}

	if cfg.Resource != nil {
		router.Mount(resourcePath, cfg.Resource)
		cfg.Logger.Info().Str("path", resourcePath).Msg("resource protocol served")
	}

	if cfg.Config.Telemetry.Traces.Enabled {
		cfg.Logger.Info().Msg("distributed tracing enabled")

		return otelhttp.NewHandler(router, cfg.Config.App.ServiceName)
	}

	return router
}
