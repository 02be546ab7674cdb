// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrConflict, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"

	"github.com/jsamuelsen/postflight/internal/domain"
)

// EventStore persists accepted events. The intake handler writes the event
// before responding; deferred work reads it back afterwards.
type EventStore interface {
	// Save persists an event.
	// Returns domain.ErrConflict if an event with the same ID already exists.
	Save(ctx context.Context, event *domain.Event) error

	// GetByID retrieves an event by its identifier.
	// Returns domain.ErrNotFound if the event does not exist.
	GetByID(ctx context.Context, id string) (*domain.Event, error)

	// List returns all stored events in insertion order.
	List(ctx context.Context) ([]*domain.Event, error)
}

// WebhookDispatcher delivers accepted events to downstream subscribers.
// Delivery runs after the intake response has been sent, so implementations
// must not assume the originating request is still open.
type WebhookDispatcher interface {
	// Dispatch delivers the event to all configured endpoints.
	// Returns domain.ErrUnavailable if no endpoint could be reached.
	Dispatch(ctx context.Context, event *domain.Event) error
}

// AuditLog records intake activity for later inspection. Recording is
// deferred until after the response, so a slow audit backend never adds
// latency to the producer.
type AuditLog interface {
	// Record appends an audit entry for the event.
	Record(ctx context.Context, event *domain.Event, outcome string) error
}
