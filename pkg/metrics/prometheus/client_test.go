package prometheus_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"github.com/architeacher/u2f-registrations/pkg/metrics/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func scrape(t *testing.T, client *prometheus.Client) string {
	t.Helper()

	recorder := httptest.NewRecorder()
	client.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)

	return string(body)
}

func TestClient_Inc(t *testing.T) {
	t.Parallel()

	client := prometheus.NewClient("registrations")
	ctx := context.Background()

	client.Inc(ctx, "commands.register_device.success", 1, attribute.String("backend", "memory"))
	client.Inc(ctx, "commands.register_device.success", int64(2), attribute.String("backend", "memory"))
	client.Inc(ctx, "commands.register_device.success", -1, attribute.String("backend", "memory"))
	client.Inc(ctx, "commands.register_device.success", "ignored", attribute.String("backend", "memory"))

	body := scrape(t, client)
	require.Contains(t, body, `registrations_commands_register_device_success{backend="memory"} 3`)
}

func TestClient_Observe(t *testing.T) {
	t.Parallel()

	client := prometheus.NewClient("registrations")

	client.Observe(context.Background(), "queries.list_owner_devices.duration", 0.2)

	body := scrape(t, client)
	require.Contains(t, body, "registrations_queries_list_owner_devices_duration_count 1")
}

func TestMetricName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "svc_http_requests_total", metrics.MetricName("svc", "http.requests-total"))
	require.Equal(t, "queries_get_device", metrics.MetricName("", "queries.get_device"))
}
