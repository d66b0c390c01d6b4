package metrics

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

type (
	Client interface {
		// Inc adds value to the counter named key.
		Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue)
		// Observe records a sample, in seconds, on the histogram named key.
		Observe(ctx context.Context, key string, seconds float64, attributes ...attribute.KeyValue)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}
)

// MetricName turns a dotted key such as "commands.register_device.success"
// into a name accepted by Prometheus.
func MetricName(namespace, key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_")
	name := replacer.Replace(strings.ToLower(key))

	if namespace == "" {
		return name
	}

	return replacer.Replace(strings.ToLower(namespace)) + "_" + name
}
