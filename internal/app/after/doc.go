// Package after schedules work to run once a request's response has been
// fully sent, while still observing the request's contextual state.
//
// Application code schedules two shapes of work:
//
//   - Pending: an operation that is already running. The scheduler only
//     arranges for the host to keep the request's execution environment alive
//     until the operation settles.
//   - Callback: a unit of work that has not started. It is buffered and runs
//     only after the response closes, inside a snapshot of the request state
//     captured at schedule time.
//
// A Scheduler is created once per request by the request pipeline, which
// supplies the two host hooks: a keep-alive hook (usually Tracker.KeepAlive)
// and a close-signal hook that fires exactly once when the response has been
// flushed. Handlers reach the scheduler through the request context:
//
//	func handle(c *gin.Context) {
//	    ctx := c.Request.Context()
//	    _ = after.Do(ctx, func(ctx context.Context) error {
//	        // Runs after the response has been sent. Reads through
//	        // reqstate see the same values as at schedule time.
//	        return audit.Record(ctx)
//	    })
//	    c.JSON(http.StatusAccepted, resp)
//	}
//
// Failures in deferred work never reach the already-sent response: they are
// contained and reported to the configured Sink. Only misconfiguration
// (missing hooks, an empty Task) surfaces synchronously from Schedule.
package after
