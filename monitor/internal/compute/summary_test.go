package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hex20/telemetry-health/pkg/types"
)

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, types.HealthSummary{}, s)
	assert.Equal(t, 0, s.Total())
}

func TestSummarize_MixedWindow(t *testing.T) {
	var window []types.Reading
	for i := int64(0); i < 10; i++ {
		window = append(window, nominal(i))
	}
	crit := nominal(10)
	crit.Temp = 80
	warn := nominal(11)
	warn.IsoFlag = true
	warn.CombinedFlag = true
	window = append(window, crit, warn)

	s := Summarize(window)
	assert.Equal(t, types.HealthSummary{Critical: 1, Warning: 1, Normal: 10}, s)
	assert.Equal(t, len(window), s.Total())
	assert.Equal(t, s, Summarize(window), "summarize must be idempotent")
}

func TestSummarize_ReferenceWindow(t *testing.T) {
	// 9 normal readings plus one critical and one warning.
	var window []types.Reading
	for i := int64(0); i < 9; i++ {
		window = append(window, nominal(i))
	}
	crit := nominal(9)
	crit.BatteryV = 3.0
	warn := nominal(10)
	warn.LRBattFlag = true
	warn = warn.Normalize()
	window = append(window, crit, warn)

	assert.Equal(t, types.HealthSummary{Critical: 1, Warning: 1, Normal: 9}, Summarize(window))
}

func TestSummarize_CountsAlwaysSum(t *testing.T) {
	var window []types.Reading
	for i := 0; i < 57; i++ {
		r := nominal(int64(i))
		switch i % 4 {
		case 0:
			r.Comm = types.CommLost
		case 1:
			r.RuleFlag = true
			r = r.Normalize()
		case 2:
			r.BatteryV = 3.3
		}
		window = append(window, r)
	}

	assert.Equal(t, len(window), Summarize(window).Total())
	assert.Equal(t, len(window), Default.SummarizeWithBands(window).Total())
}

func TestSummarizeWithBands_DiffersOnlyInWarning(t *testing.T) {
	soft := nominal(1)
	soft.BatteryV = 3.3
	window := []types.Reading{nominal(0), soft}

	assert.Equal(t, types.HealthSummary{Normal: 2}, Summarize(window))
	assert.Equal(t, types.HealthSummary{Warning: 1, Normal: 1}, Default.SummarizeWithBands(window))
}
