package reqstate

import (
	"context"
	"sync"
)

// EntryConfig holds the values baked into an Entry at construction time.
type EntryConfig struct {
	// Route is the matched route pattern (not the raw URL path).
	Route string

	// RequestID identifies this request.
	RequestID string

	// CorrelationID tracks the business transaction across services.
	CorrelationID string

	// Flags are the feature flags resolved for this request.
	// The map is copied; later mutation of the caller's map has no effect.
	Flags map[string]bool
}

// Entry is an immutable bundle of request-scoped values. It is created once
// per request by the request pipeline and only ever read afterwards, so it is
// safe to share between the request goroutine and deferred callbacks.
//
// The memoization cache is the one internally-mutable part; it is backed by
// sync.Map and append-only, so concurrent readers always observe a value that
// was valid at some point during the request.
type Entry struct {
	route         string
	requestID     string
	correlationID string
	flags         map[string]bool
	cache         sync.Map
}

// NewEntry creates an Entry from the given config.
func NewEntry(cfg EntryConfig) *Entry {
	var flags map[string]bool
	if len(cfg.Flags) > 0 {
		flags = make(map[string]bool, len(cfg.Flags))
		for k, v := range cfg.Flags {
			flags[k] = v
		}
	}

	return &Entry{
		route:         cfg.Route,
		requestID:     cfg.RequestID,
		correlationID: cfg.CorrelationID,
		flags:         flags,
	}
}

// Route returns the matched route pattern.
func (e *Entry) Route() string {
	return e.route
}

// RequestID returns the request's ID.
func (e *Entry) RequestID() string {
	return e.requestID
}

// CorrelationID returns the request's correlation ID.
func (e *Entry) CorrelationID() string {
	return e.correlationID
}

// Flag reports whether the named feature flag is enabled for this request.
func (e *Entry) Flag(name string) bool {
	return e.flags[name]
}

// GetOrFetch retrieves a cached value or executes fetchFn and caches the
// result. A value memoized during the request is observed unchanged by
// deferred callbacks running after the response closed.
func (e *Entry) GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error) {
	if cached, ok := e.cache.Load(key); ok {
		return cached, nil
	}

	value, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}

	// LoadOrStore handles the race between two concurrent fetches.
	actual, _ := e.cache.LoadOrStore(key, value)

	return actual, nil
}
