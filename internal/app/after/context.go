package after

import "context"

type schedulerKey struct{}

// WithScheduler stores the request's scheduler in the context. The request
// pipeline calls this once per request.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey{}, s)
}

// FromContext extracts the request's scheduler.
func FromContext(ctx context.Context) (*Scheduler, bool) {
	if ctx == nil {
		return nil, false
	}

	s, ok := ctx.Value(schedulerKey{}).(*Scheduler)

	return s, ok
}

// Do schedules fn to run after the response closes, using the scheduler
// carried by ctx. It is the form application code normally uses.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s, ok := FromContext(ctx)
	if !ok {
		return ErrNoScheduler
	}

	return s.Schedule(ctx, Callback(fn))
}

// Track registers an already-running operation with the scheduler carried by
// ctx, keeping the request alive until it settles.
func Track(ctx context.Context, op <-chan error) error {
	s, ok := FromContext(ctx)
	if !ok {
		return ErrNoScheduler
	}

	return s.Schedule(ctx, Pending(op))
}
