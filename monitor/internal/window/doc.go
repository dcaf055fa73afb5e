// Package window holds the monitor's only mutable state: the bounded window
// of the most recent telemetry readings.
//
// The window is never mutated in place. Replace builds a new immutable
// Snapshot and swaps it in with an atomic pointer store, so a reader that
// loaded the previous Snapshot keeps a consistent view and never observes a
// torn mix of old and new readings. No locks are needed.
//
// Readings are stored in insertion order, as received. Visible sorts a copy
// by timestamp for each consumer: ascending for charts, descending for lists.
package window
