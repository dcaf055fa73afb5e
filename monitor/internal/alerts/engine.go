package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hex20/telemetry-health/monitor/internal/compute"
	"github.com/hex20/telemetry-health/monitor/internal/config"
	"github.com/hex20/telemetry-health/monitor/internal/window"
	"github.com/hex20/telemetry-health/pkg/types"
)

const (
	maxHistoryLen = 100
	recentWindow  = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is one alert event raised from the latest reading.
type Alert struct {
	ID         string                `json:"id"`
	ReadingID  int64                 `json:"reading_id"`
	Severity   types.Severity        `json:"severity"`
	Message    string                `json:"message"`
	Reasons    []types.AnomalyReason `json:"reasons"`
	FiredAt    time.Time             `json:"fired_at"`
	ResolvedAt *time.Time            `json:"resolved_at,omitempty"`
	State      string                `json:"state"`
}

// Engine tracks at most one firing alert for the telemetry stream. A
// non-normal latest reading fires it, escalation to critical re-fires it,
// and a normal latest reading resolves it.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	webhooks []config.WebhookConfig
	cooldown time.Duration
	client   *http.Client
	current  *Alert
	lastFire time.Time
	history  []*Alert
	now      func() time.Time

	deliveries sync.WaitGroup
}

// New creates an Engine from the alert configuration. An Engine with no
// webhooks still tracks alerts for the API.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{now: time.Now}
	e.Configure(cfg)
	return e
}

// Configure swaps webhooks, cooldown and delivery timeout.
func (e *Engine) Configure(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)
	e.cooldown = cfg.Cooldown
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	e.client = &http.Client{Timeout: timeout}
}

// Evaluate classifies the latest reading of snap with c and fires or
// resolves the stream alert. Webhooks are delivered asynchronously.
func (e *Engine) Evaluate(snap *window.Snapshot, c compute.Classifier) {
	latest, ok := snap.Latest()
	if !ok {
		return
	}
	sev := c.Classify(latest)
	now := e.now()

	e.mu.Lock()
	var out *Alert
	switch {
	case sev == types.SeverityNormal:
		if e.current != nil {
			resolved := now
			e.current.State = StateResolved
			e.current.ResolvedAt = &resolved
			e.history = append(e.history, e.current)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			out = e.current
			e.current = nil
		}

	case e.current == nil:
		if now.Sub(e.lastFire) < e.cooldown && sev != types.SeverityCritical {
			e.mu.Unlock()
			slog.Debug("alerts: suppressed by cooldown", "reading", latest.ID, "severity", sev)
			return
		}
		out = e.fireLocked(latest, sev, c, now)

	case sev == types.SeverityCritical && e.current.Severity != types.SeverityCritical:
		// Escalation replaces the warning alert.
		out = e.fireLocked(latest, sev, c, now)
	}

	var cp Alert
	var hooks []config.WebhookConfig
	var client *http.Client
	if out != nil {
		cp = *out
		hooks, client = e.webhooks, e.client
	}
	e.mu.Unlock()

	if out == nil {
		return
	}
	if cp.State == StateFiring {
		slog.Warn("alert fired", "reading", cp.ReadingID, "severity", cp.Severity, "message", cp.Message)
	} else {
		slog.Info("alert resolved", "id", cp.ID)
	}
	e.deliveries.Add(1)
	go func() {
		defer e.deliveries.Done()
		deliver(client, hooks, &cp)
	}()
}

func (e *Engine) fireLocked(r types.Reading, sev types.Severity, c compute.Classifier, now time.Time) *Alert {
	reasons := c.Explain(r)
	a := &Alert{
		ID:        fmt.Sprintf("reading-%d:%d", r.ID, now.UnixNano()),
		ReadingID: r.ID,
		Severity:  sev,
		Message:   message(r, sev, reasons),
		Reasons:   reasons,
		FiredAt:   now,
		State:     StateFiring,
	}
	e.current = a
	e.lastFire = now
	return a
}

func message(r types.Reading, sev types.Severity, reasons []types.AnomalyReason) string {
	if len(reasons) == 0 {
		return fmt.Sprintf("[%s] reading %d flagged by upstream models", sev, r.ID)
	}
	msgs := make([]string, len(reasons))
	for i, reason := range reasons {
		msgs[i] = reason.Message
	}
	return fmt.Sprintf("[%s] reading %d: %s", sev, r.ID, strings.Join(msgs, "; "))
}

// Active returns copies of the firing alert plus alerts resolved within the
// past hour, newest first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]Alert, 0, 1+len(e.history))
	if e.current != nil {
		out = append(out, *e.current)
	}
	for i := len(e.history) - 1; i >= 0; i-- {
		a := e.history[i]
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.deliveries.Wait()
}
