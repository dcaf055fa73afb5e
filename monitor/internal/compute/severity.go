package compute

import "github.com/hex20/telemetry-health/pkg/types"

// Default threshold values.
const (
	DefaultBatteryLowV     = 3.2
	DefaultBatteryWarningV = 3.4
	DefaultTempCriticalC   = 70.0
	DefaultTempWarningC    = 60.0
)

// Thresholds holds the physical limits used by the classifier.
//
// BatteryLowV and TempCriticalC drive the critical tier. BatteryWarningV and
// TempWarningC only feed the display band policy (MetricStatus,
// ClassifyWithBands); Classify never looks at them.
type Thresholds struct {
	BatteryLowV     float64 `yaml:"battery_low_v"`
	BatteryWarningV float64 `yaml:"battery_warning_v"`
	TempCriticalC   float64 `yaml:"temp_critical_c"`
	TempWarningC    float64 `yaml:"temp_warning_c"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BatteryLowV:     DefaultBatteryLowV,
		BatteryWarningV: DefaultBatteryWarningV,
		TempCriticalC:   DefaultTempCriticalC,
		TempWarningC:    DefaultTempWarningC,
	}
}

// Classifier applies a fixed set of Thresholds. The zero value is not useful;
// use NewClassifier or Default.
type Classifier struct {
	th Thresholds
}

// NewClassifier returns a Classifier using th.
func NewClassifier(th Thresholds) Classifier {
	return Classifier{th: th}
}

// Default is the classifier used by the package-level functions.
var Default = NewClassifier(DefaultThresholds())

// Thresholds returns the limits c was built with.
func (c Classifier) Thresholds() Thresholds {
	return c.th
}

// Classify returns the severity tier of r. First match wins:
//
//	battery_v < BatteryLowV     -> critical
//	temp      > TempCriticalC   -> critical
//	comm      == LOST           -> critical
//	combined_flag               -> warning
//	otherwise                   -> normal
func (c Classifier) Classify(r types.Reading) types.Severity {
	if c.hardViolation(r) {
		return types.SeverityCritical
	}
	if r.CombinedFlag {
		return types.SeverityWarning
	}
	return types.SeverityNormal
}

func (c Classifier) hardViolation(r types.Reading) bool {
	return c.batteryLow(r) || c.tempCritical(r) || r.Comm == types.CommLost
}

func (c Classifier) batteryLow(r types.Reading) bool {
	return r.BatteryV < c.th.BatteryLowV
}

func (c Classifier) tempCritical(r types.Reading) bool {
	return r.Temp > c.th.TempCriticalC
}

// Classify classifies r with the default thresholds.
func Classify(r types.Reading) types.Severity {
	return Default.Classify(r)
}

// DisplayStatus is the per-metric colouring of one reading.
type DisplayStatus struct {
	Battery types.Severity `json:"battery"`
	Temp    types.Severity `json:"temp"`
	Comm    types.Severity `json:"comm"`
	Solar   types.Severity `json:"solar"`
	CPU     types.Severity `json:"cpu"`
}

// MetricStatus returns the display band of every metric in r. Unlike
// Classify it has a warning band below the critical limits: battery under
// BatteryWarningV, temperature over TempWarningC and a degraded link.
// Solar current and CPU load have no bands and are always normal.
func (c Classifier) MetricStatus(r types.Reading) DisplayStatus {
	st := DisplayStatus{
		Battery: types.SeverityNormal,
		Temp:    types.SeverityNormal,
		Comm:    types.SeverityNormal,
		Solar:   types.SeverityNormal,
		CPU:     types.SeverityNormal,
	}

	switch {
	case r.BatteryV < c.th.BatteryLowV:
		st.Battery = types.SeverityCritical
	case r.BatteryV < c.th.BatteryWarningV:
		st.Battery = types.SeverityWarning
	}

	switch {
	case r.Temp > c.th.TempCriticalC:
		st.Temp = types.SeverityCritical
	case r.Temp > c.th.TempWarningC:
		st.Temp = types.SeverityWarning
	}

	switch r.Comm {
	case types.CommLost:
		st.Comm = types.SeverityCritical
	case types.CommDegraded:
		st.Comm = types.SeverityWarning
	}

	return st
}

// ClassifyWithBands is Classify with the display warning band folded into
// the warning tier. Critical verdicts are identical to Classify.
func (c Classifier) ClassifyWithBands(r types.Reading) types.Severity {
	if sev := c.Classify(r); sev != types.SeverityNormal {
		return sev
	}
	st := c.MetricStatus(r)
	if st.Battery == types.SeverityWarning || st.Temp == types.SeverityWarning || st.Comm == types.SeverityWarning {
		return types.SeverityWarning
	}
	return types.SeverityNormal
}
