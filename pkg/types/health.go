package types

import "fmt"

// Severity is the engine's verdict for one reading: one of SeverityCritical,
// SeverityWarning or SeverityNormal.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityNormal   Severity = "normal"
)

// ReasonSeverity grades a single explanation reason.
type ReasonSeverity string

const (
	ReasonCritical ReasonSeverity = "critical"
	ReasonWarning  ReasonSeverity = "warning"
	ReasonInfo     ReasonSeverity = "info"
)

// AnomalyReason is one human-readable cause for a flagged reading.
type AnomalyReason struct {
	Severity ReasonSeverity `json:"type"`
	Message  string         `json:"message"`
}

// FeatureDeviation is the z-score of one channel against a baseline window.
// ZScore is never negative.
type FeatureDeviation struct {
	Feature string  `json:"feature"`
	ZScore  float64 `json:"zScore"`
}

// HealthSummary tallies a window of readings by severity. Every reading
// contributes to exactly one bucket.
type HealthSummary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Normal   int `json:"normal"`
}

// Total returns the number of readings the summary was computed over.
func (s HealthSummary) Total() int {
	return s.Critical + s.Warning + s.Normal
}

// Add increments the bucket for sev.
func (s *HealthSummary) Add(sev Severity) {
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityWarning:
		s.Warning++
	default:
		s.Normal++
	}
}

// AnomalyKind is a synthetic anomaly the ingestion side can be asked to
// produce in demo mode.
type AnomalyKind string

const (
	AnomalyBattery AnomalyKind = "battery"
	AnomalyTemp    AnomalyKind = "temp"
	AnomalyComm    AnomalyKind = "comm"
)

// AnomalyKinds is the fixed injection rotation.
var AnomalyKinds = []AnomalyKind{AnomalyBattery, AnomalyTemp, AnomalyComm}

// ParseAnomalyKind validates s as an AnomalyKind.
func ParseAnomalyKind(s string) (AnomalyKind, error) {
	for _, k := range AnomalyKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid anomaly type %q", s)
}

// InjectCommand is the wire body of an injection request, over HTTP or MQTT.
type InjectCommand struct {
	Type AnomalyKind `json:"type"`
}
