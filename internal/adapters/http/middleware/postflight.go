package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/postflight/internal/app/after"
	"github.com/jsamuelsen/postflight/internal/app/reqstate"
	"github.com/jsamuelsen/postflight/internal/platform/metrics"
	"github.com/jsamuelsen/postflight/internal/ports"
)

// PostFlightConfig wires the deferred-task pipeline into the request chain.
type PostFlightConfig struct {
	// Tracker keeps the process alive until every pending operation settles.
	// Required.
	Tracker *after.Tracker

	// Flags supplies the feature flags snapshotted into the request state.
	// Optional.
	Flags ports.FeatureFlags

	// Sink receives deferred task failures. Optional; defaults to a slog sink.
	Sink after.Sink

	// Metrics instruments scheduling activity. Optional.
	Metrics *metrics.Scheduler
}

// PostFlight returns middleware that equips every request with a deferred
// task scheduler. Handlers reach it through after.Do and after.Track on the
// request context.
//
// The middleware builds the immutable request state (route, IDs, flag
// snapshot), creates a per-request scheduler, and fires the close signal
// once the handler chain has returned and the response is written. Callbacks
// scheduled during the request run only after that signal; the shutdown path
// waits on the Tracker so in-flight deferred work finishes before exit.
//
// Apply after RequestID and CorrelationID so the request state carries them.
func PostFlight(cfg PostFlightConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var flags map[string]bool
		if cfg.Flags != nil {
			flags = cfg.Flags.Snapshot(ctx)
		}

		entry := reqstate.NewEntry(reqstate.EntryConfig{
			Route:         c.FullPath(),
			RequestID:     GetRequestID(c),
			CorrelationID: GetCorrelationID(c),
			Flags:         flags,
		})

		notifier := after.NewCloseNotifier()
		scheduler := after.New(after.Config{
			KeepAlive: cfg.Tracker.KeepAlive,
			OnClose:   notifier.Subscribe,
			Sink:      cfg.Sink,
			Metrics:   cfg.Metrics,
		})

		ctx = reqstate.With(ctx, entry)
		ctx = reqstate.WithPhase(ctx, reqstate.PhaseRequest)
		ctx = after.WithScheduler(ctx, scheduler)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// The handler chain has returned and gin has written the response.
		// Anything scheduled from here on sees the response as closed and
		// runs immediately.
		notifier.Fire()
	}
}
