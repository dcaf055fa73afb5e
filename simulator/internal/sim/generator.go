package sim

import (
	"math"
	"math/rand"

	"github.com/hex20/telemetry-health/pkg/types"
)

const (
	orbitPeriod = 90   // ticks per orbit
	dayLength   = 1440 // ticks per battery drain cycle
)

// Generator produces nominal readings and applies anomaly perturbations.
// It is not safe for concurrent use; Simulator serialises access.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing noise from rng.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Base returns the nominal reading for tick t. ID, timestamp and model
// flags are left for the caller.
func (g *Generator) Base(t int64) types.Reading {
	orbit := math.Sin(2 * math.Pi * float64(t) / orbitPeriod)
	lit := math.Max(0, orbit)

	cpu := 20 + math.Trunc(g.norm(5))
	return types.Reading{
		BatteryV: 3.9 - 0.0002*float64(t%dayLength) + 0.05*lit + g.norm(0.02),
		SolarI:   0.2 + 0.15*lit + g.norm(0.02),
		Temp:     25 + 4*orbit + g.norm(0.8),
		CPU:      math.Max(1, math.Min(95, cpu)),
		Comm:     types.CommNominal,
	}
}

// Apply perturbs r for an active anomaly of kind.
func (g *Generator) Apply(r *types.Reading, kind types.AnomalyKind) {
	switch kind {
	case types.AnomalyBattery:
		r.BatteryV -= g.uniform(0.5, 1.2)
	case types.AnomalyTemp:
		r.Temp += g.uniform(15, 50)
	case types.AnomalyComm:
		r.Comm = types.CommLost
	}
}

func (g *Generator) norm(sigma float64) float64 {
	return g.rng.NormFloat64() * sigma
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
