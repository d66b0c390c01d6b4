// Package noop provides a metrics client that records nothing, used when
// metrics are disabled.
package noop

import (
	"context"
	"net/http"

	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

type MetricsClient struct{}

var _ metrics.Client = MetricsClient{}

func NewMetricsClient() MetricsClient {
	return MetricsClient{}
}

func (MetricsClient) Inc(context.Context, string, any, ...attribute.KeyValue) {}

func (MetricsClient) Observe(context.Context, string, float64, ...attribute.KeyValue) {}

// Handler answers 404 since there is nothing to scrape.
func (MetricsClient) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "metrics are disabled", http.StatusNotFound)
	})
}

func (MetricsClient) Shutdown(context.Context) error {
	return nil
}
