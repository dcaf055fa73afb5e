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
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort        = 8000
	DefaultTickInterval    = time.Second
	DefaultBufferSize      = 1000
	DefaultServeLatest     = 300
	DefaultPrefill         = 50
	DefaultAutoInjectProb  = 0.02
	DefaultAnomalyDuration = 5
	DefaultZThreshold      = 3.0
	DefaultWarmup          = 30
	DefaultHistory         = 120
	DefaultLRTolerance     = 0.25
	DefaultMQTTTopic       = "telemetry/inject"
	DefaultMQTTClientID    = "telemetry-simulator"
)

// Config is the simulator configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	HTTPPort int    `yaml:"http_port"`

	// TickInterval is the time between generated readings.
	TickInterval time.Duration `yaml:"tick_interval"`

	// BufferSize is how many readings are retained.
	BufferSize int `yaml:"buffer_size"`

	// ServeLatest is how many of the newest readings /telemetry returns.
	ServeLatest int `yaml:"serve_latest"`

	// Prefill readings are generated at startup so clients see data at once.
	Prefill int `yaml:"prefill"`

	// Seed fixes the random source. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`

	Anomalies AnomalyConfig  `yaml:"anomalies"`
	Detector  DetectorConfig `yaml:"detector"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
}

// AnomalyConfig controls injected anomalies.
type AnomalyConfig struct {
	// AutoProbability is the per-tick chance of a spontaneous anomaly while
	// none is active.
	AutoProbability float64 `yaml:"auto_probability"`

	// Duration is how many readings one anomaly lasts.
	Duration int `yaml:"duration"`
}

// DetectorConfig tunes the upstream model signals attached to each reading.
type DetectorConfig struct {
	// ZThreshold is the score above which iso_flag is raised.
	ZThreshold float64 `yaml:"z_threshold"`

	// Warmup readings are emitted before any model flag can fire.
	Warmup int `yaml:"warmup"`

	// History is the trailing window the detectors fit against.
	History int `yaml:"history"`

	// LRTolerance is the battery residual, in volts, that raises lr_batt_flag.
	LRTolerance float64 `yaml:"lr_tolerance"`
}

// MQTTConfig enables injection commands over MQTT.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Topic       string `yaml:"topic"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	QoS         byte   `yaml:"qos"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Load reads and parses the YAML config file at path. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		LogLevel:     "info",
		HTTPPort:     DefaultHTTPPort,
		TickInterval: DefaultTickInterval,
		BufferSize:   DefaultBufferSize,
		ServeLatest:  DefaultServeLatest,
		Prefill:      DefaultPrefill,
		Anomalies: AnomalyConfig{
			AutoProbability: DefaultAutoInjectProb,
			Duration:        DefaultAnomalyDuration,
		},
		Detector: DetectorConfig{
			ZThreshold:  DefaultZThreshold,
			Warmup:      DefaultWarmup,
			History:     DefaultHistory,
			LRTolerance: DefaultLRTolerance,
		},
		MQTT: MQTTConfig{
			Topic:    DefaultMQTTTopic,
			ClientID: DefaultMQTTClientID,
		},
	}
}

func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", cfg.HTTPPort)
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if cfg.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if cfg.ServeLatest <= 0 || cfg.ServeLatest > cfg.BufferSize {
		return fmt.Errorf("serve_latest must be in [1, buffer_size]")
	}
	if cfg.Prefill < 0 {
		return fmt.Errorf("prefill must not be negative")
	}
	if p := cfg.Anomalies.AutoProbability; p < 0 || p > 1 {
		return fmt.Errorf("anomalies.auto_probability must be in [0, 1]")
	}
	if cfg.Anomalies.Duration <= 0 {
		return fmt.Errorf("anomalies.duration must be positive")
	}
	if cfg.Detector.ZThreshold <= 0 {
		return fmt.Errorf("detector.z_threshold must be positive")
	}
	if cfg.Detector.History < 2 {
		return fmt.Errorf("detector.history must be at least 2")
	}
	if cfg.Detector.LRTolerance <= 0 {
		return fmt.Errorf("detector.lr_tolerance must be positive")
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}
