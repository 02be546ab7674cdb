// Package domain contains core business entities and rules.
package domain

import "time"

// Event is a unit of intake accepted by the service. It is recorded during
// the request and fanned out (webhooks, audit) only after the response to the
// producer has been sent.
type Event struct {
	// ID is the unique identifier assigned at intake.
	ID string

	// Type classifies the event (e.g. "order.created").
	Type string

	// Source identifies the producing system.
	Source string

	// Payload is the event body as provided by the producer.
	Payload map[string]any

	// ReceivedAt is when the service accepted the event.
	ReceivedAt time.Time
}
