// Package prometheus implements metrics.Client on top of a dedicated
// Prometheus registry. Instruments are created on first use.
package prometheus

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/architeacher/u2f-registrations/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

type Client struct {
	namespace  string
	registry   *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

var _ metrics.Client = (*Client)(nil)

func NewClient(namespace string) *Client {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Client{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (c *Client) Inc(_ context.Context, key string, value any, attributes ...attribute.KeyValue) {
	delta, ok := toFloat(value)
	if !ok || delta < 0 {
		return
	}

	names, values := splitAttributes(attributes)
	name := metrics.MetricName(c.namespace, key)

	c.mu.Lock()
	vec, exists := c.counters[name]
	if !exists {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: key}, names)
		if err := c.registry.Register(vec); err != nil {
			c.mu.Unlock()

			return
		}

		c.counters[name] = vec
	}
	c.mu.Unlock()

	counter, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		return
	}

	counter.Add(delta)
}

func (c *Client) Observe(_ context.Context, key string, seconds float64, attributes ...attribute.KeyValue) {
	names, values := splitAttributes(attributes)
	name := metrics.MetricName(c.namespace, key)

	c.mu.Lock()
	vec, exists := c.histograms[name]
	if !exists {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    key,
			Buckets: prometheus.DefBuckets,
		}, names)
		if err := c.registry.Register(vec); err != nil {
			c.mu.Unlock()

			return
		}

		c.histograms[name] = vec
	}
	c.mu.Unlock()

	observer, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		return
	}

	observer.Observe(seconds)
}

func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Client) Shutdown(_ context.Context) error {
	return nil
}

func splitAttributes(attributes []attribute.KeyValue) ([]string, []string) {
	sorted := make([]attribute.KeyValue, len(attributes))
	copy(sorted, attributes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})

	names := make([]string, 0, len(sorted))
	values := make([]string, 0, len(sorted))

	for _, attr := range sorted {
		names = append(names, metrics.MetricName("", string(attr.Key)))
		values = append(values, attr.Value.Emit())
	}

	return names, values
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
