// Package taskqueue provides an ordered, pausable executor for deferred
// zero-argument operations.
//
// A Queue starts paused: Enqueue is legal at any time, but nothing runs until
// Start is called. Once draining, items run strictly one after another in
// FIFO order; a failing (panicking) item is reported and the queue proceeds
// to the next one. WaitIdle blocks until every item — including items
// enqueued while the drain was already running — has completed.
package taskqueue

import (
	"context"
	"sync"
)

// State describes where the queue sits in its lifecycle.
type State int

const (
	// StatePaused is the initial state: items accumulate but do not run.
	StatePaused State = iota

	// StateDraining means Start was called and items are running or pending.
	StateDraining

	// StateIdle means Start was called and no items remain in flight.
	StateIdle
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateDraining:
		return "draining"
	case StateIdle:
		return "idle"
	default:
		return "paused"
	}
}

// PanicHandler receives the recovered value when a queued item panics.
type PanicHandler func(recovered any)

// Queue is a sequential FIFO executor. The zero value is not usable; create
// queues with New. All methods are safe for concurrent use.
type Queue struct {
	onPanic PanicHandler

	mu      sync.Mutex
	items   []func()
	started bool
	running bool // an item is currently executing
	idle    bool
	idleCh  chan struct{} // closed on the transition to idle
}

// New creates a paused queue. onPanic may be nil, in which case panics from
// queued items are swallowed after recovery.
func New(onPanic PanicHandler) *Queue {
	return &Queue{
		onPanic: onPanic,
		idleCh:  make(chan struct{}),
	}
}

// Enqueue appends fn to the pending list. It always succeeds and never
// blocks; the queue is bounded only by process memory, matching its
// best-effort contract. Enqueueing into a queue that already drained to idle
// resumes the drain.
func (q *Queue) Enqueue(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)

	if q.idle {
		// Leaving idle: future WaitIdle calls need a fresh signal.
		q.idle = false
		q.idleCh = make(chan struct{})
	}

	pump := q.started && !q.running
	q.mu.Unlock()

	if pump {
		go q.drain()
	}
}

// Start transitions the queue from paused to draining. Calling Start on a
// queue that is already draining is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}

	q.started = true
	q.mu.Unlock()

	go q.drain()
}

// Len returns the number of items not yet completed, counting the item
// currently in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if q.running {
		n++
	}

	return n
}

// State reports the queue's current lifecycle state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case !q.started:
		return StatePaused
	case q.idle:
		return StateIdle
	default:
		return StateDraining
	}
}

// WaitIdle blocks until the queue has started and every enqueued item —
// including items enqueued during the drain — has completed. It returns
// ctx.Err if ctx is done first.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.idle {
			q.mu.Unlock()
			return nil
		}
		ch := q.idleCh
		q.mu.Unlock()

		select {
		case <-ch:
			// Re-check: the queue may have left idle again already.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain pops and runs items one at a time. The running flag guarantees at
// most one drain loop makes progress even if several goroutines race here.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if !q.started || q.running {
			q.mu.Unlock()
			return
		}

		if len(q.items) == 0 {
			if !q.idle {
				q.idle = true
				close(q.idleCh)
			}
			q.mu.Unlock()
			return
		}

		fn := q.items[0]
		q.items = q.items[1:]
		q.running = true
		q.mu.Unlock()

		q.runOne(fn)

		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}
}

// runOne executes a single item, containing any panic so one failing item
// never halts the drain.
func (q *Queue) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.onPanic != nil {
			q.onPanic(r)
		}
	}()

	fn()
}
