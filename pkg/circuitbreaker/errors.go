package circuitbreaker

import "errors"

var (
	// ErrCircuitOpen is returned while the breaker rejects all calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open trial budget is spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)
