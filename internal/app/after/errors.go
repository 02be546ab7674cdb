package after

import "errors"

var (
	// ErrNoKeepAlive is returned by Schedule when the host did not supply a
	// keep-alive hook. This is a wiring mistake, not a runtime condition:
	// without it the host may recycle the request's execution environment
	// while deferred work is still running.
	ErrNoKeepAlive = errors.New("after: no keep-alive hook configured")

	// ErrNoCloseSignal is returned by Schedule for callback tasks when the
	// host did not supply a close-signal hook; callbacks have nothing to
	// anchor their execution to without one.
	ErrNoCloseSignal = errors.New("after: no close-signal hook configured")

	// ErrInvalidTask is returned by Schedule for a zero-value Task.
	ErrInvalidTask = errors.New("after: task is neither a pending operation nor a callback")

	// ErrNoScheduler is returned by Do and Track when the context does not
	// carry a request scheduler.
	ErrNoScheduler = errors.New("after: no scheduler in context")
)
