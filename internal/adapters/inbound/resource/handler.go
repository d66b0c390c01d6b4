package resource

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/u2f-registrations/internal/adapters/wire"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/internal/ports"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
)

const (
	contentTypeJSON = "application/json"
	maxRequestBody  = 4 << 20
	ownerParam      = "owner"
)

type Handler struct {
	store  ports.DeviceStore
	logger logger.Logger
}

func NewHandler(store ports.DeviceStore, log logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: log.Component("resource"),
	}
}

// List answers with every stored registration, expired ones included.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	regs, err := h.store.All(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	body, err := wire.EncodeEnvelope(regs)
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	etag := strconv.Quote(strconv.FormatUint(xxhash.Sum64(body), 16))
	w.Header().Set("ETag", etag)

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)

		return
	}

	writeJSON(w, http.StatusOK, body)
}

// Add persists the posted registrations under fresh ids.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "request body could not be read")

		return
	}

	regs, err := wire.DecodeBatch(payload)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_REGISTRATION", err.Error())

		return
	}

	persisted, err := h.store.Insert(r.Context(), regs...)
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	body, err := wire.EncodeEnvelope(persisted)
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	h.logger.WithContext(r.Context()).Debug().
		Int("count", len(persisted)).
		Msg("registrations added")

	writeJSON(w, http.StatusOK, body)
}

// Remove deletes every registration, or only the owner's when ?owner= is given.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	var err error

	if query := r.URL.Query(); query.Has(ownerParam) {
		owner := query.Get(ownerParam)
		if owner == "" {
			middleware.WriteError(w, http.StatusBadRequest, "INVALID_OWNER", "owner must not be empty")

			return
		}

		err = h.store.DeleteByOwner(r.Context(), owner)
	} else {
		err = h.store.Clear(r.Context())
	}

	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveOne deletes a single registration. Unknown ids succeed.
func (h *Handler) RemoveOne(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_ID", err.Error())

		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithContext(r.Context()).Error().Err(err).Msg("resource store failure")

	switch {
	case errors.Is(err, model.ErrInvalidRegistration):
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_REGISTRATION", err.Error())
	case errors.Is(err, model.ErrStoreUnavailable):
		middleware.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "registration store unavailable")
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
