package webhook

import "errors"

var (
	// ErrCircuitOpen is returned when the circuit breaker blocks a delivery.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded is returned when all delivery attempts to an
	// endpoint have failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrEndpointRejected is returned when an endpoint answers with a 4xx
	// status. The delivery is not retried.
	ErrEndpointRejected = errors.New("endpoint rejected delivery")
)
