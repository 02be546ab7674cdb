// Package reqstate carries request-scoped state across the gap between a
// request's synchronous extent and work that runs after its response has been
// sent.
//
// An Entry is an immutable bundle of per-request values (route, IDs, feature
// flags, a memoization cache). Entries are activated in layers on a
// context.Context:
//
//	entry := reqstate.NewEntry(reqstate.EntryConfig{Route: "/api/v1/events"})
//	err := reqstate.Run(ctx, entry, func(ctx context.Context) error {
//	    cur, _ := reqstate.Current(ctx) // == entry
//	    return nil
//	})
//
// Capture takes a point-in-time snapshot of every active layer; Restore
// re-activates the snapshot on a different context later, so a deferred
// callback reads exactly the values it would have read had it run at capture
// time:
//
//	snap := reqstate.Capture(ctx)
//	// ... later, on an unrelated context ...
//	err := snap.Restore(context.Background(), func(ctx context.Context) error {
//	    cur, _ := reqstate.Current(ctx) // same entry as at capture time
//	    return nil
//	})
//
// The package also tracks the request phase. While the response is streaming
// the phase is PhaseRequest; once the response has closed, post-response work
// runs under PhaseResponseClosed, which is the signal that state-mutating
// operations deferred during rendering are now permitted.
package reqstate
