package api

import (
	"github.com/hex20/telemetry-health/monitor/internal/alerts"
	"github.com/hex20/telemetry-health/monitor/internal/compute"
	"github.com/hex20/telemetry-health/monitor/internal/inject"
	"github.com/hex20/telemetry-health/monitor/internal/scheduler"
	"github.com/hex20/telemetry-health/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is the severity of the newest reading, or "unknown" when the
	// window is empty.
	State       string              `json:"state"`
	Summary     types.HealthSummary `json:"summary"`
	WindowSize  int                 `json:"window_size"`
	Capacity    int                 `json:"capacity"`
	Generation  uint64              `json:"generation"`
	RefreshedAt string              `json:"refreshed_at,omitempty"` // RFC3339
	Rejected    int                 `json:"rejected"`
	Scheduler   *scheduler.Stats    `json:"scheduler,omitempty"`
	Injection   *inject.Stats       `json:"injection,omitempty"`
}

// ReadingResponse is one reading annotated with its severity.
type ReadingResponse struct {
	types.Reading
	Severity types.Severity `json:"severity"`
}

// DetailResponse is the payload for GET /api/v1/readings/{id}.
type DetailResponse struct {
	ReadingResponse
	Reasons    []types.AnomalyReason    `json:"reasons"`
	Deviations []types.FeatureDeviation `json:"deviations"`
}

// SummaryResponse is the payload for GET /api/v1/summary.
type SummaryResponse struct {
	Policy string `json:"policy"`
	types.HealthSummary
	Total int `json:"total"`
}

// StatusResponse is the payload for GET /api/v1/status: the display bands of
// the newest reading.
type StatusResponse struct {
	ReadingResponse
	Bands compute.DisplayStatus `json:"bands"`
}

// InjectResponse is the payload for POST /api/v1/inject.
type InjectResponse struct {
	Status string            `json:"status"`
	Type   types.AnomalyKind `json:"type"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Summary     types.HealthSummary `json:"summary"`
	Readings    []ReadingResponse   `json:"readings"` // oldest first
	Generation  uint64              `json:"generation"`
	RefreshedAt string              `json:"refreshed_at,omitempty"` // RFC3339
	GeneratedAt string              `json:"generated_at"`           // RFC3339
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	Alerts []alerts.Alert `json:"alerts"` // firing first, then newest resolved
	Firing int            `json:"firing"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
