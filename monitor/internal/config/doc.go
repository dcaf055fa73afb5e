// Package config loads and watches the monitor configuration file.
//
// Top-level types:
//   - Config{LogLevel, Ingest, Window, Thresholds, Deviation, Injection, Server}
//   - IngestConfig: endpoint of the ingestion collaborator, request timeout,
//     auth and tls; AuthConfig.Key/Token/Password resolve secrets from env vars
//   - WindowConfig: capacity and refresh_interval of the telemetry window
//   - InjectionConfig: transport (http|mqtt), selector (round_robin|random),
//     timeout and the MQTT broker settings
//   - ServerConfig: http_port, auth for mutating routes, allowed ws origins
//
// Load(path) loads an optional .env file next to the config, reads the YAML,
// applies defaults and validates enums and ranges.
//
// Watch(ctx, path, onChange) reloads on write/create events and hands the
// new Config to onChange. Only thresholds and injection settings are applied
// live; the caller logs the rest as requiring a restart.
package config
