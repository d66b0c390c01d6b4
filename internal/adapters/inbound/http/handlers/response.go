package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/architeacher/u2f-registrations/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/u2f-registrations/internal/adapters/wire"
	"github.com/architeacher/u2f-registrations/internal/domain/model"
	"github.com/architeacher/u2f-registrations/pkg/logger"
)

const (
	apiVersion = "v1"

	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"
)

type (
	responseMeta struct {
		RequestID  string `json:"requestId,omitempty"`
		APIVersion string `json:"apiVersion"`
	}

	// EnvelopedResponse wraps response data with request metadata.
	EnvelopedResponse struct {
		Data any          `json:"data"`
		Meta responseMeta `json:"meta"`
	}
)

func newMeta(r *http.Request) responseMeta {
	return responseMeta{
		RequestID:  middleware.GetRequestID(r.Context()),
		APIVersion: apiVersion,
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set(contentTypeHeader, applicationJSON)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(EnvelopedResponse{Data: data, Meta: newMeta(r)})
}

// encodeRegistrations renders registrations in their tagged wire form.
func encodeRegistrations(regs []*model.Registration) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(regs))

	for _, reg := range regs {
		data, err := wire.Encode(reg)
		if err != nil {
			return nil, err
		}

		out = append(out, data)
	}

	return out, nil
}

func writeDomainError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	var validation *model.ValidationErrors

	switch {
	case errors.As(err, &validation):
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_REGISTRATION", validation.Error())
	case errors.Is(err, model.ErrInvalidRegistration), errors.Is(err, model.ErrInvalidRegistrationID):
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, model.ErrRegistrationNotFound):
		middleware.WriteError(w, http.StatusNotFound, "REGISTRATION_NOT_FOUND", "registration not found")
	case errors.Is(err, model.ErrCorruptData):
		log.WithContext(r.Context()).Error().Err(err).Msg("registration store returned corrupt data")
		middleware.WriteError(w, http.StatusBadGateway, "CORRUPT_DATA", "registration store returned unreadable data")
	case errors.Is(err, model.ErrRequestRejected):
		log.WithContext(r.Context()).Error().Err(err).Msg("registration store rejected the request")
		middleware.WriteError(w, http.StatusBadGateway, "STORE_REJECTED", "registration store rejected the request")
	case errors.Is(err, model.ErrStoreUnavailable):
		log.WithContext(r.Context()).Warn().Err(err).Msg("registration store unavailable")
		middleware.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "registration store unavailable")
	default:
		log.WithContext(r.Context()).Error().Err(err).Msg("unexpected failure")
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
