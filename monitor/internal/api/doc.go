// Package api implements the monitor's REST API for display collaborators.
//
// Routes (all JSON unless noted):
//
//	GET  /api/v1/health         window summary, size, refresh state, counters
//	GET  /api/v1/readings       ?depth=N&order=asc|desc&flagged=true
//	GET  /api/v1/readings/{id}  severity, reasons and deviations of one reading
//	GET  /api/v1/summary        ?policy=strict|bands
//	GET  /api/v1/status         per-metric display bands of the newest reading
//	GET  /api/v1/snapshot       full annotated window, as pushed on /ws/stream
//	POST /api/v1/inject         ?type=battery|temp|comm, guarded by API key
//	GET  /metrics               Prometheus text exposition
//
// Every handler loads one window snapshot and one classification policy and
// uses them for the whole response.
package api
