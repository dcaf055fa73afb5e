package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hex20/telemetry-health/monitor/internal/compute"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultLogLevel        = "info"
	DefaultIngestTimeout   = 5 * time.Second
	DefaultCapacity        = 300
	DefaultRefreshInterval = time.Second
	DefaultInjectTimeout   = 5 * time.Second
	DefaultHTTPPort        = 8090
	DefaultMQTTTopic       = "telemetry/inject"
	DefaultMQTTClientID    = "telemetry-monitor"
	DefaultAlertCooldown   = 5 * time.Minute
	DefaultWebhookTimeout  = 10 * time.Second
)

// Config is the top-level monitor configuration.
type Config struct {
	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Ingest     IngestConfig       `yaml:"ingest"`
	Window     WindowConfig       `yaml:"window"`
	Thresholds compute.Thresholds `yaml:"thresholds"`
	Deviation  DeviationConfig    `yaml:"deviation"`
	Injection  InjectionConfig    `yaml:"injection"`
	Server     ServerConfig       `yaml:"server"`
	Alerts     AlertsConfig       `yaml:"alerts"`
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IngestConfig describes the upstream ingestion collaborator.
type IngestConfig struct {
	// Endpoint is the base URL; /telemetry, /stats and /inject_anomaly are
	// resolved against it.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies how the monitor authenticates to the ingestion side.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header carries the key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key resolved from the environment.
func (a AuthConfig) Key() string { return lookupEnv(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a AuthConfig) Token() string { return lookupEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return lookupEnv(a.PasswordEnv) }

// TLSConfig holds TLS dial options for the ingestion client.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file"`
}

// WindowConfig sizes the telemetry window and its refresh cadence.
type WindowConfig struct {
	Capacity        int           `yaml:"capacity"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// DeviationConfig controls the deviation baseline.
type DeviationConfig struct {
	// Trailing restricts the baseline to the most recent N readings of the
	// window. Zero uses the whole window.
	Trailing int `yaml:"trailing"`
}

// InjectionConfig controls demo anomaly injection.
type InjectionConfig struct {
	// Transport is http (POST to the ingestion endpoint) or mqtt.
	Transport string `yaml:"transport"`

	// Selector is round_robin or random.
	Selector string `yaml:"selector"`

	// Timeout bounds one fire-and-forget command.
	Timeout time.Duration `yaml:"timeout"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig holds broker settings for the mqtt injection transport.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Topic       string `yaml:"topic"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	QoS         byte   `yaml:"qos"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string { return lookupEnv(m.PasswordEnv) }

// ServerConfig holds the display API settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`

	// Auth guards the mutating routes (POST /api/v1/inject).
	Auth ServerAuthConfig `yaml:"auth"`

	// AllowedOrigins lists browser origins accepted by /ws/stream.
	// Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ServerAuthConfig configures API key checks on mutating routes.
type ServerAuthConfig struct {
	// Mode is apikey or none.
	Mode string `yaml:"mode"`

	// Header is the request header carrying the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	KeyEnv string `yaml:"key_env"`
}

// Key returns the expected API key resolved from the environment.
func (a ServerAuthConfig) Key() string { return lookupEnv(a.KeyEnv) }

// AlertsConfig controls severity transition notifications.
type AlertsConfig struct {
	// Cooldown suppresses a new alert for this long after the previous one
	// fired. Escalation to critical is never suppressed.
	Cooldown time.Duration `yaml:"cooldown"`

	// Timeout bounds one webhook POST.
	Timeout time.Duration `yaml:"timeout"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string { return lookupEnv(w.URLEnv) }

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path. A .env file in the
// same directory, if present, is loaded first so key_env style references
// resolve. Variables already set in the environment are not overridden.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Ingest: IngestConfig{
			Timeout: DefaultIngestTimeout,
		},
		Window: WindowConfig{
			Capacity:        DefaultCapacity,
			RefreshInterval: DefaultRefreshInterval,
		},
		Thresholds: compute.DefaultThresholds(),
		Injection: InjectionConfig{
			Transport: "http",
			Selector:  "round_robin",
			Timeout:   DefaultInjectTimeout,
			MQTT: MQTTConfig{
				Topic:    DefaultMQTTTopic,
				ClientID: DefaultMQTTClientID,
			},
		},
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Auth:     ServerAuthConfig{Header: "X-API-Key"},
		},
		Alerts: AlertsConfig{
			Cooldown: DefaultAlertCooldown,
			Timeout:  DefaultWebhookTimeout,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}

	if cfg.Ingest.Endpoint == "" {
		return fmt.Errorf("ingest.endpoint is required")
	}
	if cfg.Ingest.Timeout <= 0 {
		return fmt.Errorf("ingest.timeout must be positive")
	}
	switch cfg.Ingest.Auth.Mode {
	case "apikey":
		if cfg.Ingest.Auth.Header == "" {
			return fmt.Errorf("ingest.auth.header is required for apikey mode")
		}
	case "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("ingest.auth: unknown mode %q", cfg.Ingest.Auth.Mode)
	}

	if cfg.Window.Capacity <= 0 {
		return fmt.Errorf("window.capacity must be positive")
	}
	if cfg.Window.RefreshInterval <= 0 {
		return fmt.Errorf("window.refresh_interval must be positive")
	}
	if cfg.Deviation.Trailing < 0 {
		return fmt.Errorf("deviation.trailing must not be negative")
	}

	th := cfg.Thresholds
	if th.BatteryWarningV < th.BatteryLowV {
		return fmt.Errorf("thresholds: battery_warning_v (%.2f) below battery_low_v (%.2f)",
			th.BatteryWarningV, th.BatteryLowV)
	}
	if th.TempWarningC > th.TempCriticalC {
		return fmt.Errorf("thresholds: temp_warning_c (%.1f) above temp_critical_c (%.1f)",
			th.TempWarningC, th.TempCriticalC)
	}

	inj := cfg.Injection
	switch inj.Transport {
	case "http":
	case "mqtt":
		if inj.MQTT.Broker == "" {
			return fmt.Errorf("injection.mqtt.broker is required for mqtt transport")
		}
		if inj.MQTT.QoS > 2 {
			return fmt.Errorf("injection.mqtt.qos must be 0, 1 or 2")
		}
	default:
		return fmt.Errorf("injection: unknown transport %q", inj.Transport)
	}
	switch inj.Selector {
	case "round_robin", "random":
	default:
		return fmt.Errorf("injection: unknown selector %q", inj.Selector)
	}
	if inj.Timeout <= 0 {
		return fmt.Errorf("injection.timeout must be positive")
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey":
		if cfg.Server.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required for apikey mode")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}

	if cfg.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must not be negative")
	}
	if cfg.Alerts.Timeout <= 0 {
		return fmt.Errorf("alerts.timeout must be positive")
	}
	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("alerts.webhooks[%d].url_env is required", i)
		}
	}
	return nil
}
