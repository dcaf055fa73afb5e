package compute

import (
	"fmt"

	"github.com/hex20/telemetry-health/pkg/types"
)

// MaxReasons is the largest number of reasons Explain can return.
const MaxReasons = 4

const msgCommLost = "communication link lost"

// Explain lists why r was flagged. Each rule is evaluated independently and
// appended in a fixed order, hard rules first:
//
//	battery_v < BatteryLowV   critical  "Battery critically low at 3.00V"
//	temp > TempCriticalC      critical  "Temperature high: 75.0°C"
//	comm == LOST              critical  "communication link lost"
//	iso_flag                  warning   "AI Model detected anomaly (score: 0.812)"
//
// The result is empty, never nil, when nothing applies.
func (c Classifier) Explain(r types.Reading) []types.AnomalyReason {
	reasons := make([]types.AnomalyReason, 0, MaxReasons)

	if c.batteryLow(r) {
		reasons = append(reasons, types.AnomalyReason{
			Severity: types.ReasonCritical,
			Message:  fmt.Sprintf("Battery critically low at %.2fV", r.BatteryV),
		})
	}
	if c.tempCritical(r) {
		reasons = append(reasons, types.AnomalyReason{
			Severity: types.ReasonCritical,
			Message:  fmt.Sprintf("Temperature high: %.1f°C", r.Temp),
		})
	}
	if r.Comm == types.CommLost {
		reasons = append(reasons, types.AnomalyReason{
			Severity: types.ReasonCritical,
			Message:  msgCommLost,
		})
	}
	if r.IsoFlag {
		reasons = append(reasons, types.AnomalyReason{
			Severity: types.ReasonWarning,
			Message:  fmt.Sprintf("AI Model detected anomaly (score: %.3f)", r.IsoScore),
		})
	}

	return reasons
}

// Explain explains r with the default thresholds.
func Explain(r types.Reading) []types.AnomalyReason {
	return Default.Explain(r)
}
