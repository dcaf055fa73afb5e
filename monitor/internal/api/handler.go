package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hex20/telemetry-health/monitor/internal/alerts"
	"github.com/hex20/telemetry-health/monitor/internal/compute"
	"github.com/hex20/telemetry-health/monitor/internal/inject"
	"github.com/hex20/telemetry-health/monitor/internal/scheduler"
	"github.com/hex20/telemetry-health/monitor/internal/window"
	"github.com/hex20/telemetry-health/pkg/types"
)

// SchedulerStats exposes refresh counters.
type SchedulerStats interface {
	Stats() scheduler.Stats
}

// Injector triggers demo anomaly injection.
type Injector interface {
	InjectNext(ctx context.Context) types.AnomalyKind
	Inject(ctx context.Context, kind types.AnomalyKind)
	Stats() inject.Stats
}

// AlertSource lists firing and recently resolved alerts.
type AlertSource interface {
	Active() []alerts.Alert
}

// Options wires a Handler. Window and Policy are required; the rest may be
// nil.
type Options struct {
	Window    *window.Window
	Policy    *compute.Live
	Scheduler SchedulerStats
	Injector  Injector
	Alerts    AlertSource

	// Guard wraps mutating routes, typically auth.APIKey.
	Guard func(http.Handler) http.Handler

	// Clients reports connected stream clients for /metrics.
	Clients func() int
}

// Handler is the HTTP handler for /api/v1/* and /metrics.
type Handler struct {
	opts Options
	mux  *http.ServeMux
	now  func() time.Time
}

// New creates a Handler and registers all routes.
func New(opts Options) http.Handler {
	if opts.Guard == nil {
		opts.Guard = func(h http.Handler) http.Handler { return h }
	}
	h := &Handler{opts: opts, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/readings", h.listReadings)
	h.mux.HandleFunc("/api/v1/readings/", h.getReading) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/summary", h.summary)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.Handle("/api/v1/inject", opts.Guard(http.HandlerFunc(h.inject)))
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.opts.Window.Snapshot()
	c := h.opts.Policy.Load().Classifier

	resp := HealthResponse{
		State:       "unknown",
		Summary:     c.Summarize(snap.Readings),
		WindowSize:  snap.Len(),
		Capacity:    h.opts.Window.Capacity(),
		Generation:  snap.Generation,
		RefreshedAt: formatTime(snap.RefreshedAt),
		Rejected:    snap.Rejected,
	}
	if latest, ok := snap.Latest(); ok {
		resp.State = string(c.Classify(latest))
	}
	if h.opts.Scheduler != nil {
		st := h.opts.Scheduler.Stats()
		resp.Scheduler = &st
	}
	if h.opts.Injector != nil {
		st := h.opts.Injector.Stats()
		resp.Injection = &st
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/v1/alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := AlertsResponse{Alerts: []alerts.Alert{}}
	if h.opts.Alerts != nil {
		resp.Alerts = h.opts.Alerts.Active()
	}
	for _, a := range resp.Alerts {
		if a.State == alerts.StateFiring {
			resp.Firing++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listReadings returns GET /api/v1/readings?depth=N&order=asc|desc&flagged=true.
func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	depth, err := parseDepth(q.Get("depth"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	order := q.Get("order")
	if order != "" && order != "asc" && order != "desc" {
		jsonErr(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}
	flagged := q.Get("flagged") == "true"

	c := h.opts.Policy.Load().Classifier
	visible := h.opts.Window.Snapshot().Visible(depth, window.ParseOrder(order))

	out := make([]ReadingResponse, 0, len(visible))
	for _, rd := range visible {
		sev := c.Classify(rd)
		if flagged && sev == types.SeverityNormal {
			continue
		}
		out = append(out, ReadingResponse{Reading: rd, Severity: sev})
	}
	jsonResp(w, http.StatusOK, out)
}

// getReading returns GET /api/v1/readings/{id} with reasons and deviations
// against the current window.
func (h *Handler) getReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/readings/")
	if raw == "" {
		h.listReadings(w, r)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid reading id")
		return
	}

	snap := h.opts.Window.Snapshot()
	rd, ok := snap.Find(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "reading not found")
		return
	}

	p := h.opts.Policy.Load()
	jsonResp(w, http.StatusOK, DetailResponse{
		ReadingResponse: ReadingResponse{Reading: rd, Severity: p.Classifier.Classify(rd)},
		Reasons:         p.Classifier.Explain(rd),
		Deviations:      p.Analyzer.Deviations(rd, snap.Readings),
	})
}

// summary returns GET /api/v1/summary?policy=strict|bands.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c := h.opts.Policy.Load().Classifier
	readings := h.opts.Window.Snapshot().Readings

	var s types.HealthSummary
	policy := r.URL.Query().Get("policy")
	switch policy {
	case "", "strict":
		policy = "strict"
		s = c.Summarize(readings)
	case "bands":
		s = c.SummarizeWithBands(readings)
	default:
		jsonErr(w, http.StatusBadRequest, "policy must be strict or bands")
		return
	}
	jsonResp(w, http.StatusOK, SummaryResponse{Policy: policy, HealthSummary: s, Total: s.Total()})
}

// status returns GET /api/v1/status, the display bands of the newest reading.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	latest, ok := h.opts.Window.Snapshot().Latest()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no readings")
		return
	}
	c := h.opts.Policy.Load().Classifier
	jsonResp(w, http.StatusOK, StatusResponse{
		ReadingResponse: ReadingResponse{Reading: latest, Severity: c.Classify(latest)},
		Bands:           c.MetricStatus(latest),
	})
}

// snapshot returns GET /api/v1/snapshot, the same body the stream pushes.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.opts.Window.Snapshot(), h.opts.Policy.Load().Classifier, h.now()))
}

// inject handles POST /api/v1/inject[?type=battery|temp|comm]. Without a type
// the controller's selector picks one. The command is dispatched in the
// background; 202 means accepted, not delivered.
func (h *Handler) inject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.opts.Injector == nil {
		jsonErr(w, http.StatusServiceUnavailable, "injection disabled")
		return
	}

	var kind types.AnomalyKind
	if raw := r.URL.Query().Get("type"); raw != "" {
		k, err := types.ParseAnomalyKind(raw)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = k
		h.opts.Injector.Inject(r.Context(), kind)
	} else {
		kind = h.opts.Injector.InjectNext(r.Context())
	}
	jsonResp(w, http.StatusAccepted, InjectResponse{Status: "dispatched", Type: kind})
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot renders snap for display: every reading oldest first with its
// severity, plus the strict summary.
func BuildSnapshot(snap *window.Snapshot, c compute.Classifier, now time.Time) SnapshotResponse {
	visible := snap.Visible(0, window.Ascending)
	readings := make([]ReadingResponse, 0, len(visible))
	for _, rd := range visible {
		readings = append(readings, ReadingResponse{Reading: rd, Severity: c.Classify(rd)})
	}
	return SnapshotResponse{
		Summary:     c.Summarize(snap.Readings),
		Readings:    readings,
		Generation:  snap.Generation,
		RefreshedAt: formatTime(snap.RefreshedAt),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// parseDepth accepts an empty string (all) or a non-negative integer.
func parseDepth(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errBadDepth
	}
	return n, nil
}

var errBadDepth = errors.New("depth must be a non-negative integer")

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
