// Package types defines the data model shared by the monitor and the
// simulator: telemetry readings, severity tiers, explanation reasons, feature
// deviations and fleet health summaries. These are the canonical in-memory
// representations; lenient wire decoding lives in monitor/internal/ingest.
package types
