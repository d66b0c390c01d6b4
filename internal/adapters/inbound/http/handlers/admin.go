package handlers

import (
	"net/http"

	"github.com/architeacher/u2f-registrations/internal/usecases"
	"github.com/architeacher/u2f-registrations/internal/usecases/commands"
	"github.com/architeacher/u2f-registrations/internal/usecases/queries"
	"github.com/architeacher/u2f-registrations/pkg/logger"
)

// AdminHandler serves operational endpoints. They are meant for an internal
// network only.
type AdminHandler struct {
	app    *usecases.Application
	logger logger.Logger
}

func NewAdminHandler(app *usecases.Application, log logger.Logger) *AdminHandler {
	return &AdminHandler{app: app, logger: log}
}

// Purge serves POST /admin/purge.
func (h *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Commands.PurgeExpired.Handle(r.Context(), commands.PurgeExpiredCommand{})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	writeData(w, r, http.StatusOK, result)
}

// Health serves GET /admin/health.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Queries.FetchHealth.Execute(r.Context(), queries.FetchHealthQuery{})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	status := http.StatusOK
	if result.Status != queries.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}

	writeData(w, r, status, result)
}
