// Package config loads the simulator configuration file.
//
// Config carries the HTTP port, generation cadence and buffer sizes, the
// anomaly injection knobs, the upstream detector tuning and an optional MQTT
// subscription for injection commands. Load applies defaults, then
// validates. A .env file next to the config is loaded first.
package config
