package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/hex20/telemetry-health/monitor/internal/alerts"
	"github.com/hex20/telemetry-health/pkg/types"
)

const metricPrefix = "telemetry_"

// metrics returns GET /metrics in the Prometheus text exposition format.
// Families are built per request from the current snapshot and counters.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: encode metric family", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// gather builds the metric families exposed on /metrics.
func (h *Handler) gather() []*dto.MetricFamily {
	snap := h.opts.Window.Snapshot()
	c := h.opts.Policy.Load().Classifier
	s := c.Summarize(snap.Readings)

	fams := []*dto.MetricFamily{
		{
			Name: proto.String(metricPrefix + "window_readings_by_severity"),
			Help: proto.String("Readings in the current window by severity."),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{
				severityGauge(types.SeverityCritical, s.Critical),
				severityGauge(types.SeverityWarning, s.Warning),
				severityGauge(types.SeverityNormal, s.Normal),
			},
		},
		gauge("window_readings", "Readings in the current window.", float64(snap.Len())),
		gauge("window_capacity", "Maximum readings retained in the window.", float64(h.opts.Window.Capacity())),
		gauge("window_rejected_readings", "Malformed readings dropped from the latest batch.", float64(snap.Rejected)),
		gauge("window_generation", "Number of times the window has been replaced.", float64(snap.Generation)),
	}
	if !snap.RefreshedAt.IsZero() {
		fams = append(fams, gauge("window_refreshed_timestamp_seconds",
			"Unix time of the latest successful refresh.", float64(snap.RefreshedAt.UnixNano())/1e9))
	}

	if h.opts.Scheduler != nil {
		st := h.opts.Scheduler.Stats()
		fams = append(fams,
			counter("refresh_total", "Successful window refreshes.", float64(st.Refreshes)),
			counter("refresh_failures_total", "Refreshes that failed to fetch or decode.", float64(st.Failures)),
			counter("refresh_skipped_total", "Ticks skipped because a refresh was in flight.", float64(st.Skipped)),
		)
	}
	if h.opts.Injector != nil {
		st := h.opts.Injector.Stats()
		fams = append(fams,
			counter("inject_sent_total", "Injection commands delivered.", float64(st.Sent)),
			counter("inject_failed_total", "Injection commands that failed.", float64(st.Failed)),
		)
	}
	if h.opts.Alerts != nil {
		var firing int
		for _, a := range h.opts.Alerts.Active() {
			if a.State == alerts.StateFiring {
				firing++
			}
		}
		fams = append(fams, gauge("alerts_firing", "Alerts currently firing.", float64(firing)))
	}
	if h.opts.Clients != nil {
		fams = append(fams, gauge("stream_clients", "Connected stream clients.", float64(h.opts.Clients())))
	}
	return fams
}

func severityGauge(sev types.Severity, n int) *dto.Metric {
	return &dto.Metric{
		Label: []*dto.LabelPair{{Name: proto.String("severity"), Value: proto.String(string(sev))}},
		Gauge: &dto.Gauge{Value: proto.Float64(float64(n))},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(metricPrefix + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(metricPrefix + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}
