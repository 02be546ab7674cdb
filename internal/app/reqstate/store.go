package reqstate

import "context"

// stackKey carries the stack of active Entry layers.
type stackKey struct{}

// phaseKey carries the request Phase.
type phaseKey struct{}

// Phase says where in the request lifecycle the current execution sits.
type Phase int

const (
	// PhaseRequest is the default: the response has not closed yet.
	PhaseRequest Phase = iota

	// PhaseResponseClosed marks execution happening after the response was
	// fully flushed; deferred state mutations are permitted here.
	PhaseResponseClosed
)

// String returns the phase name for logging.
func (p Phase) String() string {
	if p == PhaseResponseClosed {
		return "response_closed"
	}

	return "request"
}

// With activates entry as an additional layer on ctx. The returned context's
// Current is entry; the previous layer (if any) is shadowed but remains part
// of snapshots.
func With(ctx context.Context, entry *Entry) context.Context {
	prev := layers(ctx)

	// Copy so sibling contexts never share a backing array.
	next := make([]*Entry, len(prev)+1)
	copy(next, prev)
	next[len(prev)] = entry

	return context.WithValue(ctx, stackKey{}, next)
}

// Run executes fn with entry active for fn's extent. Nested Run calls shadow
// outer entries; the outer entry is visible again once fn returns.
func Run(ctx context.Context, entry *Entry, fn func(ctx context.Context) error) error {
	return fn(With(ctx, entry))
}

// Current returns the innermost active Entry. The second return is false when
// no layer is active; callers are expected to handle the absent case rather
// than rely on a panic.
func Current(ctx context.Context) (*Entry, bool) {
	stack := layers(ctx)
	if len(stack) == 0 {
		return nil, false
	}

	return stack[len(stack)-1], true
}

// Snapshot is a point-in-time capture of every active Entry layer. It is
// created by Capture and consumed by Restore; the zero value is an empty
// capture.
type Snapshot struct {
	stack []*Entry
}

// Capture snapshots the full stack of active layers, not just the innermost
// one, so nested reads behave identically after a Restore.
func Capture(ctx context.Context) Snapshot {
	prev := layers(ctx)
	if len(prev) == 0 {
		return Snapshot{}
	}

	stack := make([]*Entry, len(prev))
	copy(stack, prev)

	return Snapshot{stack: stack}
}

// Restore executes fn with the captured layers re-activated on top of
// whatever is already active on ctx. Restored layers take precedence for the
// reads they cover; the caller's own layers remain underneath. The phase on
// ctx is left untouched, so a drain sequence can mark PhaseResponseClosed
// before restoring.
func (s Snapshot) Restore(ctx context.Context, fn func(ctx context.Context) error) error {
	if len(s.stack) == 0 {
		return fn(ctx)
	}

	base := layers(ctx)
	next := make([]*Entry, 0, len(base)+len(s.stack))
	next = append(next, base...)
	next = append(next, s.stack...)

	return fn(context.WithValue(ctx, stackKey{}, next))
}

// WithPhase marks ctx with the given phase.
func WithPhase(ctx context.Context, p Phase) context.Context {
	return context.WithValue(ctx, phaseKey{}, p)
}

// CurrentPhase returns the phase marked on ctx, defaulting to PhaseRequest.
func CurrentPhase(ctx context.Context) Phase {
	if p, ok := ctx.Value(phaseKey{}).(Phase); ok {
		return p
	}

	return PhaseRequest
}

func layers(ctx context.Context) []*Entry {
	if ctx == nil {
		return nil
	}

	if stack, ok := ctx.Value(stackKey{}).([]*Entry); ok {
		return stack
	}

	return nil
}
