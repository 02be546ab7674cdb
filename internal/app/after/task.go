package after

import "context"

// Task is the unit accepted by Schedule. Exactly one of the two variants is
// set; the zero value is invalid and rejected synchronously.
type Task struct {
	pending  <-chan error
	callback func(ctx context.Context) error
}

// Pending wraps an operation that is already in flight. The channel must
// yield the operation's terminal error (or be closed) exactly when the
// operation settles; the scheduler tracks it but never starts or retries it.
func Pending(op <-chan error) Task {
	return Task{pending: op}
}

// Callback wraps a unit of work to be invoked only after the response closes.
// fn receives a context carrying the request state captured at schedule time,
// detached from the request's cancellation.
func Callback(fn func(ctx context.Context) error) Task {
	return Task{callback: fn}
}
