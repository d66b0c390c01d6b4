package rest

import (
	"net/http"

	"github.com/architeacher/u2f-registrations/pkg/circuitbreaker"
)

// Option configures the Repository.
type Option func(*Repository)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Repository) {
		r.client = client
	}
}

// WithCircuitBreaker allows injecting a custom circuit breaker for testing.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker[*response]) Option {
	return func(r *Repository) {
		r.cb = cb
	}
}

// WithMaxResponseBytes caps how much of a resource answer is read. Larger
// answers fail as corrupt data.
func WithMaxResponseBytes(limit int64) Option {
	return func(r *Repository) {
		if limit > 0 {
			r.maxBodyBytes = limit
		}
	}
}
