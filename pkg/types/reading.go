package types

import "time"

// CommStatus is the state of the spacecraft communication link.
type CommStatus int

const (
	CommNominal  CommStatus = 0
	CommDegraded CommStatus = 1
	CommLost     CommStatus = 2
)

// String returns the lowercase name of the link state.
func (c CommStatus) String() string {
	switch c {
	case CommNominal:
		return "nominal"
	case CommDegraded:
		return "degraded"
	case CommLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Reading is one timestamped telemetry sample together with the upstream
// model signals computed for it. A Reading is never mutated after it has been
// received; derived values are recomputed from it on demand.
type Reading struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	BatteryV float64    `json:"battery_v"`
	Temp     float64    `json:"temp"`
	SolarI   float64    `json:"solar_i"`
	CPU      float64    `json:"cpu"`
	Comm     CommStatus `json:"comm"`

	// IsoFlag is set when the upstream unsupervised detector fired;
	// IsoScore is its anomaly magnitude (higher = more anomalous).
	IsoFlag  bool    `json:"iso_flag"`
	IsoScore float64 `json:"iso_score"`

	// LRBattFlag is set when the battery regression predictor disagrees with
	// the observed voltage beyond its tolerance.
	LRBattFlag bool `json:"lr_batt_flag"`

	// RuleFlag is set when any static threshold was violated upstream.
	RuleFlag bool `json:"rule_flag"`

	// CombinedFlag is IsoFlag || LRBattFlag || RuleFlag.
	CombinedFlag bool `json:"combined_flag"`
}

// Normalize returns r with CombinedFlag recomputed from the contributing
// flags. Decoders call it so no reading downstream violates the fusion rule.
func (r Reading) Normalize() Reading {
	r.CombinedFlag = r.IsoFlag || r.LRBattFlag || r.RuleFlag
	return r
}

// Channel names one numeric telemetry channel.
type Channel string

const (
	ChannelBattery Channel = "battery_v"
	ChannelTemp    Channel = "temp"
	ChannelSolar   Channel = "solar_i"
	ChannelCPU     Channel = "cpu"
)

// Channels lists the numeric channels in declaration order. Deviation
// ranking uses this order to break ties.
var Channels = []Channel{ChannelBattery, ChannelTemp, ChannelSolar, ChannelCPU}

// Value returns the value of channel c in r.
func (c Channel) Value(r Reading) float64 {
	switch c {
	case ChannelBattery:
		return r.BatteryV
	case ChannelTemp:
		return r.Temp
	case ChannelSolar:
		return r.SolarI
	case ChannelCPU:
		return r.CPU
	default:
		return 0
	}
}
