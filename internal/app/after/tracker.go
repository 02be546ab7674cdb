package after

import (
	"context"
	"sync"

	"github.com/jsamuelsen/postflight/internal/platform/metrics"
)

// Tracker is the host side of the keep-alive hook: it supervises pending
// operations so every settlement is observed. A failed operation is reported
// to the sink instead of being silently dropped or crashing the process.
//
// One Tracker serves the whole process; the server drains it on shutdown so
// in-flight post-response work gets a chance to finish.
type Tracker struct {
	sink    Sink
	metrics *metrics.Scheduler

	mu       sync.Mutex
	inFlight int
	wg       sync.WaitGroup
}

// NewTracker creates a Tracker. sink may be nil (defaults to a slog sink);
// m may be nil to skip instrumentation.
func NewTracker(sink Sink, m *metrics.Scheduler) *Tracker {
	if sink == nil {
		sink = NewLogSink(nil)
	}

	return &Tracker{sink: sink, metrics: m}
}

// KeepAlive registers a pending operation. The method value satisfies
// KeepAliveFunc and may be called any number of times per request. A nil
// operation is ignored.
func (t *Tracker) KeepAlive(op <-chan error) {
	if op == nil {
		return
	}

	t.mu.Lock()
	t.inFlight++
	t.wg.Add(1)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.PendingInFlight.Inc()
	}

	go func() {
		defer func() {
			t.mu.Lock()
			t.inFlight--
			t.mu.Unlock()

			if t.metrics != nil {
				t.metrics.PendingInFlight.Dec()
			}

			t.wg.Done()
		}()

		// A closed channel settles as success.
		if err := <-op; err != nil {
			t.sink.ReportTaskError(context.Background(), "pending operation failed", err)
		}
	}()
}

// InFlight returns the number of operations not yet settled.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.inFlight
}

// Wait blocks until every tracked operation has settled or ctx is done.
// Operations registered after Wait is called are not waited for.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
