// Package resource serves the registration resource protocol over HTTP:
//
//	GET    /       {"devices":[...]} with every stored registration
//	POST   /       one registration or an array of them, answered with the persisted copies
//	DELETE /       every registration, or only those of ?owner=
//	DELETE /{id}   one registration, whether or not it exists
package resource

import (
	"net/http"

	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the resource protocol for store behind the given middlewares.
func NewRouter(store ports.DeviceStore, log logger.Logger, middlewares ...func(http.Handler) http.Handler) chi.Router {
	handler := NewHandler(store, log)

	router := chi.NewRouter()
	router.Use(middlewares...)

	router.Get("/", handler.List)
	router.Post("/", handler.Add)
	router.Delete("/", handler.Remove)
	router.Delete("/{id}", handler.RemoveOne)

	return router
}
