package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/internal/usecases"
	"github.com/architeacher/u2f-registrations/internal/usecases/commands"
	"github.com/architeacher/u2f-registrations/internal/usecases/queries"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const maxEnrollmentBody = 64 << 10

type (
	RegistrationHandler struct {
		app    *usecases.Application
		logger logger.Logger
	}

	enrollmentRequest struct {
		Type              string                     `json:"type"`
		PublicKeyMaterial string                     `json:"publicKeyMaterial"`
		Name              string                     `json:"name"`
		Extensions        map[string]json.RawMessage `json:"extensions,omitempty"`
	}
)

func NewRegistrationHandler(app *usecases.Application, log logger.Logger) *RegistrationHandler {
	return &RegistrationHandler{app: app, logger: log}
}

// ListOwnerDevices serves GET /v1/owners/{owner}/devices.
func (h *RegistrationHandler) ListOwnerDevices(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	regs, err := h.app.Queries.ListOwnerDevices.Execute(
		logger.WithOwner(r.Context(), owner),
		queries.ListOwnerDevicesQuery{Owner: owner},
	)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	h.writeRegistrations(w, r, http.StatusOK, regs)
}

// RegisterDevice serves POST /v1/owners/{owner}/devices.
func (h *RegistrationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	ctx := logger.WithOwner(r.Context(), owner)

	var req enrollmentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEnrollmentBody)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")

		return
	}

	if key := r.Header.Get(idempotency.HeaderName); key != "" {
		if err := idempotency.Validate(key); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", err.Error())

			return
		}

		ctx = idempotency.WithKey(ctx, key)
	}

	reg, err := h.app.Commands.RegisterDevice.Handle(ctx, commands.RegisterDeviceCommand{
		Enrollment: ports.Enrollment{
			Owner:             owner,
			Variant:           model.Variant(req.Type),
			PublicKeyMaterial: req.PublicKeyMaterial,
			Label:             req.Name,
			Extensions:        req.Extensions,
		},
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/devices/%s", reg.ID))

	encoded, err := encodeRegistrations([]*model.Registration{reg})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	writeData(w, r, http.StatusCreated, encoded[0])
}

// RemoveOwnerDevices serves DELETE /v1/owners/{owner}/devices.
func (h *RegistrationHandler) RemoveOwnerDevices(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	_, err := h.app.Commands.RemoveOwnerDevices.Handle(
		logger.WithOwner(r.Context(), owner),
		commands.RemoveOwnerDevicesCommand{Owner: owner},
	)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetActivation serves GET /v1/owners/{owner}/activation.
func (h *RegistrationHandler) GetActivation(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	result, err := h.app.Queries.IsActivated.Execute(
		logger.WithOwner(r.Context(), owner),
		queries.IsActivatedQuery{Owner: owner},
	)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	writeData(w, r, http.StatusOK, result)
}

// GetDevice serves GET /v1/devices/{id}.
func (h *RegistrationHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	reg, err := h.app.Queries.GetDevice.Execute(r.Context(), queries.GetDeviceQuery{ID: id})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	encoded, err := encodeRegistrations([]*model.Registration{reg})
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	writeData(w, r, http.StatusOK, encoded[0])
}

// RemoveDevice serves DELETE /v1/devices/{id}.
func (h *RegistrationHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	if _, err := h.app.Commands.RemoveDevice.Handle(r.Context(), commands.RemoveDeviceCommand{ID: id}); err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistrationHandler) writeRegistrations(w http.ResponseWriter, r *http.Request, status int, regs []*model.Registration) {
	encoded, err := encodeRegistrations(regs)
	if err != nil {
		writeDomainError(w, r, h.logger, err)

		return
	}

	writeData(w, r, status, encoded)
}
