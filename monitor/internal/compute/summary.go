package compute

import "github.com/hex20/telemetry-health/pkg/types"

// Summarize tallies readings with Classify. Counts always sum to
// len(readings); an empty input yields {0, 0, 0}.
func (c Classifier) Summarize(readings []types.Reading) types.HealthSummary {
	var s types.HealthSummary
	for i := range readings {
		s.Add(c.Classify(readings[i]))
	}
	return s
}

// SummarizeWithBands tallies readings with ClassifyWithBands.
func (c Classifier) SummarizeWithBands(readings []types.Reading) types.HealthSummary {
	var s types.HealthSummary
	for i := range readings {
		s.Add(c.ClassifyWithBands(readings[i]))
	}
	return s
}

// Summarize tallies readings with the default thresholds.
func Summarize(readings []types.Reading) types.HealthSummary {
	return Default.Summarize(readings)
}
