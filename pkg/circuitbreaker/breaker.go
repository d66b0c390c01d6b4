package circuitbreaker

import (
	"errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards calls to a remote dependency.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a new circuit breaker with the given configuration.
// Returns nil if the circuit breaker is disabled in the configuration.
func New[T any](cfg Config) *CircuitBreaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		IsSuccessful: cfg.IsSuccessful,
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Name returns the name of the circuit breaker.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// State reports "closed", "half-open" or "open". A nil breaker is always closed.
func (c *CircuitBreaker[T]) State() string {
	if c == nil {
		return gobreaker.StateClosed.String()
	}

	return c.cb.State().String()
}

// Execute runs fn through the circuit breaker, or directly when cb is nil.
// Returns ErrCircuitOpen when the breaker is open and ErrTooManyRequests when
// the half-open trial budget is exhausted.
func Execute[T any](cb *CircuitBreaker[T], fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}

	result, err := cb.cb.Execute(fn)
	if err != nil {
		var zero T

		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return zero, ErrCircuitOpen
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, ErrTooManyRequests
		}

		return result, err
	}

	return result, nil
}

// IsRejection reports whether err came from the breaker rather than from the call.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
