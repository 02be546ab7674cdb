// Package store provides event persistence adapters.
package store

import (
	"context"
	"sync"

	"github.com/jsamuelsen/postflight/internal/domain"
)

// Memory is an in-memory ports.EventStore. It is safe for concurrent use by
// the request goroutine and deferred callbacks reading events back after the
// response closed.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Event
	order []string
}

// NewMemory creates an empty in-memory event store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]*domain.Event)}
}

// Save persists an event.
// Returns domain.ErrConflict if an event with the same ID already exists.
func (m *Memory) Save(_ context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[event.ID]; exists {
		return domain.NewConflictError("event", "already exists")
	}

	m.byID[event.ID] = event
	m.order = append(m.order, event.ID)

	return nil
}

// GetByID retrieves an event by its identifier.
// Returns domain.ErrNotFound if the event does not exist.
func (m *Memory) GetByID(_ context.Context, id string) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.byID[id]
	if !ok {
		return nil, domain.NewNotFoundError("event", id)
	}

	return event, nil
}

// List returns all stored events in insertion order.
func (m *Memory) List(_ context.Context) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*domain.Event, 0, len(m.order))
	for _, id := range m.order {
		events = append(events, m.byID[id])
	}

	return events, nil
}

// Len returns the number of stored events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.order)
}
