package middleware

import (
	"bytes"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/pkg/idempotency"
	"github.com/architeacher/u2f-registrations/pkg/logger"
)

const maxIdempotentBody = 1 << 20

// Idempotency replays the stored response when a request repeats a key it has
// already completed. Reusing a key with a different body is rejected.
func Idempotency(
	store idempotency.Store,
	cfg config.Idempotency,
	log logger.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !slices.Contains(cfg.RequiredMethods, r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			idempotencyKey := r.Header.Get(cfg.HeaderName)
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)

				return
			}

			if err := idempotency.Validate(idempotencyKey); err != nil {
				WriteError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", err.Error())

				return
			}

			payload, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody))
			if err != nil {
				WriteError(w, http.StatusBadRequest, "INVALID_BODY", "request body could not be read")

				return
			}

			r.Body = io.NopCloser(bytes.NewReader(payload))

			fingerprint := idempotency.Fingerprint(payload)
			cacheKey := idempotency.BuildCacheKey(r.Method, r.URL.Path, idempotencyKey)
			ctx := r.Context()

			cached, err := store.Get(ctx, cacheKey)
			if err != nil {
				handleStoreError(w, r, next, cfg, log, err, "idempotency lookup failed")

				return
			}

			if cached != nil {
				if cached.Fingerprint != fingerprint {
					WriteError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED",
						"idempotency key was already used with a different payload")

					return
				}

				writeReplay(w, cfg, cached)

				return
			}

			acquired, err := store.SetLock(ctx, cacheKey, cfg.LockTTL)
			if err != nil {
				handleStoreError(w, r, next, cfg, log, err, "idempotency lock failed")

				return
			}

			if !acquired {
				WriteError(w, http.StatusConflict, "REQUEST_IN_PROGRESS",
					"a request with this idempotency key is already being processed")

				return
			}

			defer func() {
				if releaseErr := store.ReleaseLock(ctx, cacheKey); releaseErr != nil {
					log.Warn().Err(releaseErr).
						Str("idempotency_key", idempotencyKey).
						Msg("failed to release lock")
				}
			}()

			ctx = idempotency.WithKey(ctx, idempotencyKey)

			recorder := newBodyRecorder(w)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			if recorder.StatusCode() < http.StatusOK || recorder.StatusCode() >= http.StatusMultipleChoices {
				return
			}

			record := &idempotency.Record{
				Fingerprint: fingerprint,
				StatusCode:  recorder.StatusCode(),
				Headers:     recorder.capturedHeaders(),
				Body:        recorder.body.Bytes(),
				CreatedAt:   time.Now().UTC(),
			}

			if cacheErr := store.Set(ctx, cacheKey, record, cfg.CacheTTL); cacheErr != nil {
				log.Warn().Err(cacheErr).
					Str("idempotency_key", idempotencyKey).
					Msg("failed to cache response")
			}
		})
	}
}

func writeReplay(w http.ResponseWriter, cfg config.Idempotency, cached *idempotency.Record) {
	for key, value := range cached.Headers {
		w.Header().Set(key, value)
	}

	w.Header().Set(cfg.ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func handleStoreError(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	cfg config.Idempotency,
	log logger.Logger,
	err error,
	msg string,
) {
	log.Warn().Err(err).Msg(msg)

	if cfg.GracefulDegraded {
		next.ServeHTTP(w, r)

		return
	}

	WriteError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE",
		"idempotency service temporarily unavailable")
}
