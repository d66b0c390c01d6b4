package middleware

import (
	"net/http"
	"time"

	"github.com/architeacher/u2f-registrations/pkg/logger"
)

func AccessLogger(log logger.Logger, includeQueryParams bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := NewStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			reqLogger := log.WithContext(r.Context()).
				With().
				Str("component", "http").
				Logger()

			event := reqLogger.Info()
			if wrapped.StatusCode() >= http.StatusInternalServerError {
				event = reqLogger.Error()
			} else if wrapped.StatusCode() >= http.StatusBadRequest {
				event = reqLogger.Warn()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Int("status", wrapped.StatusCode()).
				Uint64("bytes", wrapped.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds())

			if includeQueryParams && r.URL.RawQuery != "" {
				event.Str("query", r.URL.RawQuery)
			}

			event.Send()
		})
	}
}
