package sim

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hex20/telemetry-health/pkg/types"
	"github.com/hex20/telemetry-health/simulator/internal/config"
)

// Static rule thresholds applied upstream.
const (
	ruleBatteryLowV = 3.2
	ruleTempHighC   = 70.0
)

// Detector attaches upstream model signals to readings.
type Detector struct {
	cfg  config.DetectorConfig
	hist []types.Reading
}

// NewDetector returns a Detector with an empty history.
func NewDetector(cfg config.DetectorConfig) *Detector {
	return &Detector{cfg: cfg, hist: make([]types.Reading, 0, cfg.History)}
}

// Score returns r with iso, lr and rule flags set and CombinedFlag derived,
// then records r in the trailing history.
func (d *Detector) Score(r types.Reading) types.Reading {
	r.IsoFlag, r.IsoScore, r.LRBattFlag = false, 0, false

	if len(d.hist) >= max(d.cfg.Warmup, 2) {
		r.IsoScore = d.isoScore(r)
		r.IsoFlag = r.IsoScore > d.cfg.ZThreshold
		r.LRBattFlag = d.batteryResidual(r) > d.cfg.LRTolerance
	}
	r.RuleFlag = r.BatteryV < ruleBatteryLowV || r.Temp > ruleTempHighC || r.Comm == types.CommLost
	r = r.Normalize()

	d.hist = append(d.hist, r)
	if len(d.hist) > d.cfg.History {
		d.hist = d.hist[len(d.hist)-d.cfg.History:]
	}
	return r
}

// isoScore is the largest channel z-score of r against the history.
func (d *Detector) isoScore(r types.Reading) float64 {
	vals := make([]float64, len(d.hist))
	var score float64
	for _, ch := range types.Channels {
		for i, h := range d.hist {
			vals[i] = ch.Value(h)
		}
		mean, std := stat.MeanStdDev(vals, nil)
		z := math.Abs(ch.Value(r)-mean) / math.Max(std, 1e-9)
		score = math.Max(score, z)
	}
	return score
}

// batteryResidual is |observed - predicted| battery voltage, predicting from
// solar current with a least-squares fit over the history. A degenerate fit
// yields zero.
func (d *Detector) batteryResidual(r types.Reading) float64 {
	solar := make([]float64, len(d.hist))
	batt := make([]float64, len(d.hist))
	for i, h := range d.hist {
		solar[i], batt[i] = h.SolarI, h.BatteryV
	}
	alpha, beta := stat.LinearRegression(solar, batt, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return math.Abs(r.BatteryV - (alpha + beta*r.SolarI))
}
