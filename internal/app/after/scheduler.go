package after

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/postflight/internal/app/reqstate"
	"github.com/jsamuelsen/postflight/internal/app/taskqueue"
	"github.com/jsamuelsen/postflight/internal/platform/metrics"
)

// KeepAliveFunc is the host's lifecycle-extension hook: it guarantees the
// request's execution environment is not finalized until op settles. It must
// be reentrant within one request.
type KeepAliveFunc func(op <-chan error)

// CloseSignalFunc is the host's close-signal hook: it invokes resolve exactly
// once, when the response has been fully flushed — or immediately, if the
// response had already closed when the subscription arrived.
type CloseSignalFunc func(resolve func())

// Config wires a per-request Scheduler to its host.
type Config struct {
	// KeepAlive keeps the request alive while an operation is outstanding.
	// Optional; without it no tasks can be scheduled at all.
	KeepAlive KeepAliveFunc

	// OnClose subscribes to the response-closed signal. Optional; without it
	// callback tasks are rejected.
	OnClose CloseSignalFunc

	// Sink receives failures from deferred work. Defaults to a slog sink.
	Sink Sink

	// Metrics instruments scheduling activity. Optional.
	Metrics *metrics.Scheduler
}

// Scheduler orchestrates deferred tasks against a single request's lifecycle.
// Create one per request; Schedule is safe to call from the request goroutine,
// from background work, and from within an already-running deferred callback.
type Scheduler struct {
	keepAlive KeepAliveFunc
	onClose   CloseSignalFunc
	sink      Sink
	metrics   *metrics.Scheduler
	queue     *taskqueue.Queue

	// armed latches once the close subscription has been registered.
	armed atomic.Bool
}

// New creates a Scheduler for one request.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		keepAlive: cfg.KeepAlive,
		onClose:   cfg.OnClose,
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
	}

	if s.sink == nil {
		s.sink = NewLogSink(nil)
	}

	// Backstop only: the callback wrapper recovers its own panics.
	s.queue = taskqueue.New(func(r any) {
		s.reportFailure(context.Background(), fmt.Errorf("queued task panicked: %v", r))
	})

	return s
}

// Schedule accepts a task. For a pending operation it hands the operation to
// the keep-alive hook and returns. For a callback it captures the request
// state from ctx, buffers the callback, and — on the first callback for this
// request — arms the close subscription that will later drain the buffer.
//
// Only configuration problems are returned: a missing hook or an empty task.
// Failures inside the task itself happen after the response is gone and are
// routed to the sink instead.
func (s *Scheduler) Schedule(ctx context.Context, task Task) error {
	switch {
	case task.pending != nil:
		if s.keepAlive == nil {
			return ErrNoKeepAlive
		}

		s.keepAlive(task.pending)
		s.countScheduled(metrics.KindPending)

		return nil

	case task.callback != nil:
		if s.keepAlive == nil {
			return ErrNoKeepAlive
		}

		if s.onClose == nil {
			return ErrNoCloseSignal
		}

		snap := reqstate.Capture(ctx)
		base := context.WithoutCancel(ctx)
		s.queue.Enqueue(s.wrapCallback(base, snap, task.callback))
		s.countScheduled(metrics.KindCallback)

		// Enqueue before arming: the close signal may fire synchronously
		// inside arm when the response already closed, and the drain must
		// see this callback.
		s.arm()

		return nil

	default:
		return ErrInvalidTask
	}
}

// arm registers the run-callbacks-on-close operation with both host hooks.
// It runs at most once per request no matter how many callbacks arrive.
func (s *Scheduler) arm() {
	if !s.armed.CompareAndSwap(false, true) {
		return
	}

	drained := make(chan error, 1)

	// Keep the request alive for the whole drain before subscribing, so the
	// host cannot finalize between the two registrations.
	s.keepAlive(drained)
	s.onClose(func() {
		go s.runCallbacksOnClose(drained)
	})
}

// runCallbacksOnClose starts the buffered queue once the response has closed
// and settles the keep-alive operation when the queue reports idle.
func (s *Scheduler) runCallbacksOnClose(drained chan<- error) {
	if s.queue.Len() == 0 {
		drained <- nil
		return
	}

	start := time.Now()

	s.queue.Start()

	// No internal deadline: the drain runs until done or process exit. The
	// host's own shutdown timeout bounds it from outside.
	_ = s.queue.WaitIdle(context.Background())

	if s.metrics != nil {
		s.metrics.Drains.Inc()
		s.metrics.DrainDuration.Observe(time.Since(start).Seconds())
	}

	drained <- nil
}

// wrapCallback binds a callback to the request state captured at schedule
// time and contains every way it can fail.
func (s *Scheduler) wrapCallback(base context.Context, snap reqstate.Snapshot, fn func(ctx context.Context) error) func() {
	return func() {
		runCtx := reqstate.WithPhase(base, reqstate.PhaseResponseClosed)

		// Failures are consumed inside the restored scope so the sink can
		// attach the request's identity to its report.
		_ = snap.Restore(runCtx, func(ctx context.Context) error {
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("deferred callback panicked: %v", r)
					}
				}()

				return fn(ctx)
			}()

			if err != nil {
				s.reportFailure(ctx, err)
			}

			return nil
		})
	}
}

func (s *Scheduler) reportFailure(ctx context.Context, err error) {
	s.sink.ReportTaskError(ctx, "deferred task failed", err)

	if s.metrics != nil {
		s.metrics.TaskFailures.Inc()
	}
}

func (s *Scheduler) countScheduled(kind string) {
	if s.metrics != nil {
		s.metrics.TasksScheduled.WithLabelValues(kind).Inc()
	}
}
