package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.HTTPPort != DefaultHTTPPort || cfg.TickInterval != DefaultTickInterval {
		t.Errorf("defaults: got port %d tick %v", cfg.HTTPPort, cfg.TickInterval)
	}
	if cfg.Anomalies.Duration != DefaultAnomalyDuration {
		t.Errorf("anomaly duration: got %d, want %d", cfg.Anomalies.Duration, DefaultAnomalyDuration)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg := mustLoad(t, `
log_level: debug
http_port: 9000
tick_interval: 250ms
seed: 7
anomalies:
  auto_probability: 0
detector:
  warmup: 5
mqtt:
  enabled: true
  broker: tcp://localhost:1883
`)
	if cfg.HTTPPort != 9000 || cfg.TickInterval != 250*time.Millisecond || cfg.Seed != 7 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Anomalies.AutoProbability != 0 {
		t.Errorf("auto_probability: got %v", cfg.Anomalies.AutoProbability)
	}
	if cfg.Detector.Warmup != 5 || cfg.Detector.History != DefaultHistory {
		t.Errorf("detector: got %+v", cfg.Detector)
	}
	if cfg.MQTT.Topic != DefaultMQTTTopic {
		t.Errorf("mqtt topic default lost: got %q", cfg.MQTT.Topic)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level: got %v", cfg.Level())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"port":        "http_port: 0",
		"tick":        "tick_interval: -1s",
		"serve":       "serve_latest: 5000",
		"probability": "anomalies: {auto_probability: 1.5}",
		"duration":    "anomalies: {duration: 0}",
		"history":     "detector: {history: 1}",
		"mqtt":        "mqtt: {enabled: true}",
	}
	for name, yaml := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, yaml)
			if err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Errorf("expected config error, got %v", err)
			}
		})
	}
}

func mustLoad(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := load(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

func load(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simulator.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
