package compute

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/hex20/telemetry-health/pkg/types"
)

const (
	// TopK is the maximum number of deviations returned.
	TopK = 5

	// Epsilon floors the baseline standard deviation so a constant channel
	// does not divide by zero.
	Epsilon = 1e-9

	// minBaseline is the smallest baseline a z-score is computed against.
	minBaseline = 2
)

// Analyzer ranks channel deviations of a reading against a baseline window.
//
// Trailing limits the baseline to the most recent Trailing readings by
// timestamp. Zero or negative uses the whole baseline passed in.
type Analyzer struct {
	Trailing int
}

// Deviations returns up to TopK channels ranked by
//
//	z = |value - mean| / max(stddev, Epsilon)
//
// where mean and stddev are the population statistics of the channel over
// the baseline. Ties keep channel declaration order. A baseline with fewer
// than two readings yields an empty result.
func (a Analyzer) Deviations(r types.Reading, baseline []types.Reading) []types.FeatureDeviation {
	base := a.window(baseline)
	if len(base) < minBaseline {
		return []types.FeatureDeviation{}
	}

	out := make([]types.FeatureDeviation, 0, len(types.Channels))
	values := make([]float64, len(base))
	for _, ch := range types.Channels {
		for i := range base {
			values[i] = ch.Value(base[i])
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		if std < Epsilon || math.IsNaN(std) {
			std = Epsilon
		}
		out = append(out, types.FeatureDeviation{
			Feature: string(ch),
			ZScore:  math.Abs(ch.Value(r)-mean) / std,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZScore > out[j].ZScore
	})
	if len(out) > TopK {
		out = out[:TopK]
	}
	return out
}

// window returns the trailing sub-window of baseline. The input is not
// modified.
func (a Analyzer) window(baseline []types.Reading) []types.Reading {
	if a.Trailing <= 0 || len(baseline) <= a.Trailing {
		return baseline
	}
	sorted := make([]types.Reading, len(baseline))
	copy(sorted, baseline)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted[len(sorted)-a.Trailing:]
}

// Deviations ranks r against the full baseline.
func Deviations(r types.Reading, baseline []types.Reading) []types.FeatureDeviation {
	return Analyzer{}.Deviations(r, baseline)
}
