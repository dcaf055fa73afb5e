// Package sim synthesizes spacecraft telemetry for demos and tests.
//
// Generator produces one reading per tick from a simple orbital model:
// a 90-tick sinusoidal orbit drives solar current, battery charge and
// temperature, with a slow battery drain over a 1440-tick day and Gaussian
// noise on every channel.
//
// Detector stands in for the upstream models. It scores each reading
// against a trailing history (max channel z-score for iso_flag, a
// battery-on-solar linear fit for lr_batt_flag) and applies the static
// rule thresholds for rule_flag.
//
// Simulator ties them together behind a bounded buffer, honours injected
// anomalies for a fixed number of readings, and is served over HTTP by
// NewHandler and optionally driven over MQTT by Subscribe.
package sim
