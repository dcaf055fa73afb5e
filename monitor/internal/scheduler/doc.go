// Package scheduler drives periodic refresh of the telemetry window.
//
// Start performs one refresh immediately and then one per interval on a
// time.Ticker. Each refresh runs on a worker goroutine; if the previous one
// is still in flight when the ticker fires, the tick is skipped and counted
// rather than queued, so a slow upstream never builds a backlog.
//
// A failed fetch leaves the window untouched. Stop cancels the run, waits
// for the loop and any in-flight refresh, and guarantees no Replace happens
// after it returns.
package scheduler
