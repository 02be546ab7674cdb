package ports

import (
	"context"
	"sync"
)

// FeatureFlags defines the contract for feature flag evaluation.
// The application checks enablement without knowing the underlying provider.
//
// Design principles:
//   - Always provide default values for graceful degradation
//   - Context parameter for request targeting
//   - Synchronous evaluation (async flag updates happen in adapter)
type FeatureFlags interface {
	// IsEnabled checks if a boolean feature flag is enabled.
	// Returns defaultValue if the flag doesn't exist or evaluation fails.
	IsEnabled(ctx context.Context, flag string, defaultValue bool) bool

	// Snapshot returns the current boolean flags as a map. The request
	// pipeline captures this once per request so deferred work observes
	// the flags as they were at intake, not as they are at run time.
	Snapshot(ctx context.Context) map[string]bool
}

// StaticFlags is a FeatureFlags implementation backed by an in-memory map,
// typically loaded from configuration at startup.
type StaticFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewStaticFlags creates a flag provider from the given map.
func NewStaticFlags(flags map[string]bool) *StaticFlags {
	copied := make(map[string]bool, len(flags))
	for k, v := range flags {
		copied[k] = v
	}

	return &StaticFlags{flags: copied}
}

// IsEnabled checks if a boolean feature flag is enabled.
func (s *StaticFlags) IsEnabled(_ context.Context, flag string, defaultValue bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.flags[flag]; ok {
		return v
	}

	return defaultValue
}

// Snapshot returns a copy of the current flags.
func (s *StaticFlags) Snapshot(_ context.Context) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make(map[string]bool, len(s.flags))
	for k, v := range s.flags {
		copied[k] = v
	}

	return copied
}

// Set updates a flag at runtime. Intended for tests and admin tooling.
func (s *StaticFlags) Set(flag string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[flag] = value
}
