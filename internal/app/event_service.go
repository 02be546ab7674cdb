// Package app contains application services implementing business use cases.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/postflight/internal/app/after"
	"github.com/jsamuelsen/postflight/internal/app/reqstate"
	"github.com/jsamuelsen/postflight/internal/domain"
	"github.com/jsamuelsen/postflight/internal/ports"
)

// Feature flags consulted per request. The request pipeline snapshots these
// into the request state, so deferred fan-out sees the values from intake
// time even if the flags change while the response is in flight.
const (
	FlagWebhooksEnabled = "webhooks_enabled"
	FlagAuditEnabled    = "audit_enabled"
)

// IngestInput carries the producer-supplied fields of an event.
type IngestInput struct {
	Type    string
	Source  string
	Payload map[string]any
}

// EventService accepts events and fans them out to subscribers. The fan-out
// (webhook delivery, audit record) is deferred until after the intake
// response has been sent, so producers never wait on downstream systems.
type EventService struct {
	store    ports.EventStore
	webhooks ports.WebhookDispatcher
	audit    ports.AuditLog
	flags    ports.FeatureFlags
	now      func() time.Time
}

// NewEventService creates an event service with its dependencies.
func NewEventService(
	store ports.EventStore,
	webhooks ports.WebhookDispatcher,
	audit ports.AuditLog,
	flags ports.FeatureFlags,
) *EventService {
	return &EventService{
		store:    store,
		webhooks: webhooks,
		audit:    audit,
		flags:    flags,
		now:      time.Now,
	}
}

// Ingest validates and persists an event, then schedules the downstream
// fan-out to run once the response to the producer has closed. Outside the
// request pipeline (no scheduler in ctx) the fan-out runs inline instead.
func (s *EventService) Ingest(ctx context.Context, input IngestInput) (*domain.Event, error) {
	if input.Type == "" {
		return nil, domain.NewValidationError("type", "must not be empty")
	}

	if input.Source == "" {
		return nil, domain.NewValidationError("source", "must not be empty")
	}

	event := &domain.Event{
		ID:         uuid.NewString(),
		Type:       input.Type,
		Source:     input.Source,
		Payload:    input.Payload,
		ReceivedAt: s.now(),
	}

	if err := s.store.Save(ctx, event); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	err := after.Do(ctx, func(ctx context.Context) error {
		return s.fanOut(ctx, event)
	})
	if err != nil {
		if !errors.Is(err, after.ErrNoScheduler) {
			return nil, fmt.Errorf("schedule fan-out: %w", err)
		}

		// Degraded path for callers outside the request pipeline.
		if err := s.fanOut(ctx, event); err != nil {
			return nil, err
		}
	}

	return event, nil
}

// Get retrieves a stored event.
func (s *EventService) Get(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	return event, nil
}

// List returns all stored events.
func (s *EventService) List(ctx context.Context) ([]*domain.Event, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return events, nil
}

// fanOut delivers the event to webhooks and the audit log. Both legs run
// concurrently and independently; their errors are joined so the caller (or
// the deferred-task sink) sees every failure, not just the first.
func (s *EventService) fanOut(ctx context.Context, event *domain.Event) error {
	var legs []func(context.Context) (string, error)

	if s.flagEnabled(ctx, FlagWebhooksEnabled) {
		legs = append(legs, func(ctx context.Context) (string, error) {
			if err := s.webhooks.Dispatch(ctx, event); err != nil {
				return "webhook", fmt.Errorf("dispatch webhooks: %w", err)
			}

			return "webhook", nil
		})
	}

	if s.flagEnabled(ctx, FlagAuditEnabled) {
		legs = append(legs, func(ctx context.Context) (string, error) {
			if err := s.audit.Record(ctx, event, "accepted"); err != nil {
				return "audit", fmt.Errorf("record audit entry: %w", err)
			}

			return "audit", nil
		})
	}

	var errs []error
	for _, result := range ParallelPartial(ctx, legs...) {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}

	return errors.Join(errs...)
}

// flagEnabled prefers the per-request snapshot captured at intake; the live
// provider is only consulted when no request state is present.
func (s *EventService) flagEnabled(ctx context.Context, flag string) bool {
	if entry, ok := reqstate.Current(ctx); ok {
		return entry.Flag(flag)
	}

	return s.flags.IsEnabled(ctx, flag, true)
}
