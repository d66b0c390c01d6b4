package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	httpMethodKey     = "http_method"
	httpRouteKey      = "http_route"
	httpStatusCodeKey = "http_status_code"

	httpRequestTotal    = "http_requests_total"
	httpRequestDuration = "http_request_duration_seconds"
)

// Metrics counts requests and observes their latency per route pattern.
func Metrics(client metrics.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := NewStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			attrs := []attribute.KeyValue{
				attribute.String(httpMethodKey, r.Method),
				attribute.String(httpRouteKey, route),
				attribute.String(httpStatusCodeKey, strconv.Itoa(wrapped.StatusCode())),
			}

			client.Inc(r.Context(), httpRequestTotal, int64(1), attrs...)
			client.Observe(r.Context(), httpRequestDuration, time.Since(start).Seconds(), attrs...)
		})
	}
}
