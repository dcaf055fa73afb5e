package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hex20/telemetry-health/monitor/internal/config"
	"github.com/hex20/telemetry-health/pkg/types"
)

// deliver posts a to every configured target. Errors are logged only.
func deliver(client *http.Client, hooks []config.WebhookConfig, a *Alert) {
	for _, wh := range hooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var body []byte
		switch wh.Type {
		case "slack":
			body = slackBody(a)
		case "teams":
			body = teamsBody(a)
		case "http":
			body, _ = json.Marshal(map[string]interface{}{"alert": a})
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := post(client, url, body); err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "alert", a.ID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "alert", a.ID, "state", a.State)
	}
}

func slackBody(a *Alert) []byte {
	text := fmt.Sprintf("*%s* %s", label(a), a.Message)
	body, _ := json.Marshal(map[string]string{"text": text})
	return body
}

func teamsBody(a *Alert) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color(a),
		"summary":    fmt.Sprintf("Telemetry %s", a.Severity),
		"title":      fmt.Sprintf("Telemetry health %s: reading %d", a.State, a.ReadingID),
		"text":       a.Message,
	})
	return body
}

func post(client *http.Client, url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func label(a *Alert) string {
	if a.State == StateResolved {
		return "[RESOLVED]"
	}
	switch a.Severity {
	case types.SeverityCritical:
		return "[CRITICAL]"
	case types.SeverityWarning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func color(a *Alert) string {
	if a.State == StateResolved {
		return "2EB67D"
	}
	switch a.Severity {
	case types.SeverityCritical:
		return "FF4F6A"
	case types.SeverityWarning:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
