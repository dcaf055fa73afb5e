// Package compute derives health verdicts from telemetry readings.
//
// severity.go holds the SeverityClassifier: hard physical thresholds
// (battery, temperature, link loss) outrank the fused upstream model flag,
// first match wins. It also holds the softer per-metric display band policy,
// kept separate so the two can be tested independently.
//
// explain.go builds the ordered list of reasons for a reading; rule reasons
// always precede model reasons.
//
// deviation.go ranks channel z-scores against a baseline window.
//
// summary.go tallies a window into critical / warning / normal buckets.
//
// live.go holds the Policy in effect so thresholds can be swapped at runtime.
//
// The analysis functions are pure functions of their arguments. Callers pass one
// window snapshot into every function so results are mutually consistent.
package compute
