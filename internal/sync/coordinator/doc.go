// Package coordinator runs the background roster refresh loop.
//
// The coordinator sits on top of sync.Pipeline and handles:
//
//   - an immediate refresh on startup
//   - timer-based refreshes every configured interval
//   - out-of-cycle refreshes requested through a trigger.Trigger
//   - publishing successful results to the roster.Store
//   - the sync status record exposed by the API
//   - graceful shutdown
//
// # Usage Example
//
//	store := roster.NewStore()
//	trig := trigger.New()
//	coord := coordinator.New(pipeline, store, trig,
//	    coordinator.WithInterval(cfg.GetRefreshInterval()))
//
//	go func() { _ = coord.Start(ctx) }()
//	// ... serve requests from store, call trig.Request() to force a refresh ...
//	_ = coord.Stop()
//
// # Refresh Loop
//
// A single goroutine performs every run, so two runs never overlap. After each
// run the coordinator waits for whichever comes first: the interval timer, a
// trigger request or cancellation. The interval is measured from the end of
// the previous run. A trigger requested while a run is in progress stays
// pending and starts the next run as soon as the current one finishes.
//
// # Error Handling
//
// A failed run is logged and recorded in the status as Failed; the store keeps
// the roster of the last successful run. A run interrupted by shutdown is
// discarded even if the pipeline returned a result.
package coordinator
