package circuitbreaker

import "time"

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the circuit breaker in logs and metrics.
	Name string

	// Enabled determines whether the circuit breaker is active.
	// When false, New returns nil and Execute passes through directly.
	Enabled bool

	// MaxRequests is the number of trial requests allowed while half-open. Zero means 1.
	MaxRequests uint

	// Interval is the closed-state period after which counts are cleared.
	// Zero keeps the counts until the state changes.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	// Zero defaults to 60 seconds.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint

	// IsSuccessful classifies a call's error. Nil counts every non-nil error as a failure.
	IsSuccessful func(err error) bool

	// OnStateChange is notified with the breaker name and the old and new state names.
	OnStateChange func(name, from, to string)
}
