package ports

import "context"

// HealthChecker reports whether a dependency can serve requests.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// DependencyStatus represents the health status of a dependency.
type DependencyStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}
