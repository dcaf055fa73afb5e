// Package ws implements the WebSocket hub behind /ws/stream.
//
// Hub keeps a set of connected display clients and pushes the annotated
// window to all of them whenever the scheduler installs a new snapshot
// (Notify). An optional resend interval re-broadcasts the current snapshot
// so idle clients see fresh generated_at stamps.
//
// New(window, policy, opts) creates a Hub.
// Hub.Run(ctx) drives broadcasts and blocks until ctx is cancelled, then
// closes all active connections.
// Hub.ServeHTTP upgrades a request, sends the current snapshot at once and
// then streams updates.
//
// Message format:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// Origins are checked against Options.AllowedOrigins; an empty list accepts
// every origin.
package ws
