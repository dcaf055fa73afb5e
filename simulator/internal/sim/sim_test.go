package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hex20/telemetry-health/pkg/types"
	"github.com/hex20/telemetry-health/simulator/internal/config"
)

func newSim(t *testing.T, mutate func(*config.Config)) *Simulator {
	t.Helper()
	cfg := config.Defaults()
	cfg.Seed = 42
	cfg.Anomalies.AutoProbability = 0
	if mutate != nil {
		mutate(cfg)
	}
	s := New(cfg)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestGenerator_BaseStaysPhysical(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(1)))
	for tick := int64(0); tick < 500; tick++ {
		r := g.Base(tick)
		assert.GreaterOrEqual(t, r.CPU, 1.0)
		assert.LessOrEqual(t, r.CPU, 95.0)
		assert.Equal(t, types.CommNominal, r.Comm)
		assert.InDelta(t, 3.85, r.BatteryV, 0.25, "tick %d", tick)
		assert.InDelta(t, 25, r.Temp, 9, "tick %d", tick)
		assert.InDelta(t, 0.275, r.SolarI, 0.2, "tick %d", tick)
	}
}

func TestGenerator_Apply(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(3)))
	base := g.Base(10)

	r := base
	g.Apply(&r, types.AnomalyBattery)
	drop := base.BatteryV - r.BatteryV
	assert.GreaterOrEqual(t, drop, 0.5)
	assert.LessOrEqual(t, drop, 1.2)
	assert.Equal(t, base.Temp, r.Temp)

	r = base
	g.Apply(&r, types.AnomalyTemp)
	rise := r.Temp - base.Temp
	assert.GreaterOrEqual(t, rise, 15.0)
	assert.LessOrEqual(t, rise, 50.0)

	r = base
	g.Apply(&r, types.AnomalyComm)
	assert.Equal(t, types.CommLost, r.Comm)
	assert.Equal(t, base.BatteryV, r.BatteryV)
}

func TestDetector_RuleFlag(t *testing.T) {
	d := NewDetector(config.DetectorConfig{ZThreshold: 3, Warmup: 1000, History: 10, LRTolerance: 0.25})
	nominal := types.Reading{BatteryV: 3.8, Temp: 25, SolarI: 0.3, CPU: 20}

	tests := []struct {
		name string
		edit func(*types.Reading)
		want bool
	}{
		{"nominal", func(*types.Reading) {}, false},
		{"low battery", func(r *types.Reading) { r.BatteryV = 3.1 }, true},
		{"battery at limit", func(r *types.Reading) { r.BatteryV = 3.2 }, false},
		{"hot", func(r *types.Reading) { r.Temp = 70.5 }, true},
		{"temp at limit", func(r *types.Reading) { r.Temp = 70 }, false},
		{"link lost", func(r *types.Reading) { r.Comm = types.CommLost }, true},
		{"link degraded", func(r *types.Reading) { r.Comm = types.CommDegraded }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := nominal
			tt.edit(&r)
			got := d.Score(r)
			assert.Equal(t, tt.want, got.RuleFlag)
			assert.Equal(t, tt.want, got.CombinedFlag)
			assert.False(t, got.IsoFlag, "no model flags during warmup")
			assert.False(t, got.LRBattFlag, "no model flags during warmup")
		})
	}
}

func warmDetector(t *testing.T) (*Detector, *Generator) {
	t.Helper()
	g := NewGenerator(rand.New(rand.NewSource(5)))
	d := NewDetector(config.DetectorConfig{ZThreshold: 3, Warmup: 30, History: 120, LRTolerance: 0.25})
	for tick := int64(0); tick < 90; tick++ {
		d.Score(g.Base(tick))
	}
	return d, g
}

func TestDetector_IsoFlagsOutlier(t *testing.T) {
	d, g := warmDetector(t)
	r := g.Base(90)
	r.Temp += 40

	got := d.Score(r)
	assert.True(t, got.IsoFlag)
	assert.Greater(t, got.IsoScore, 3.0)
	assert.True(t, got.CombinedFlag)
}

func TestDetector_LRFlagsBatteryDrop(t *testing.T) {
	d, g := warmDetector(t)
	r := g.Base(90)
	r.BatteryV -= 1.0

	got := d.Score(r)
	assert.True(t, got.LRBattFlag)
	assert.True(t, got.CombinedFlag)
}

func TestDetector_HistoryBounded(t *testing.T) {
	d := NewDetector(config.DetectorConfig{ZThreshold: 3, Warmup: 2, History: 8, LRTolerance: 0.25})
	g := NewGenerator(rand.New(rand.NewSource(9)))
	for tick := int64(0); tick < 40; tick++ {
		d.Score(g.Base(tick))
	}
	assert.Len(t, d.hist, 8)
}

func TestSimulator_InjectLastsDuration(t *testing.T) {
	s := newSim(t, nil)
	s.Prefill(40, time.Second)

	s.Inject(types.AnomalyComm)
	kind, left := s.Active()
	assert.Equal(t, types.AnomalyComm, kind)
	assert.Equal(t, config.DefaultAnomalyDuration, left)

	for i := 0; i < config.DefaultAnomalyDuration; i++ {
		r := s.Step()
		assert.Equal(t, types.CommLost, r.Comm, "reading %d", i)
		assert.True(t, r.RuleFlag)
	}
	kind, left = s.Active()
	assert.Empty(t, kind)
	assert.Zero(t, left)

	r := s.Step()
	assert.Equal(t, types.CommNominal, r.Comm)
}

func TestSimulator_InjectRestartsDuration(t *testing.T) {
	s := newSim(t, nil)
	s.Inject(types.AnomalyTemp)
	s.Step()
	s.Step()
	s.Inject(types.AnomalyBattery)

	kind, left := s.Active()
	assert.Equal(t, types.AnomalyBattery, kind)
	assert.Equal(t, config.DefaultAnomalyDuration, left)
}

func TestSimulator_AutoInject(t *testing.T) {
	s := newSim(t, func(c *config.Config) { c.Anomalies.AutoProbability = 1 })
	s.Step()
	kind, left := s.Active()
	assert.Contains(t, types.AnomalyKinds, kind)
	assert.Equal(t, config.DefaultAnomalyDuration-1, left)
}

func TestSimulator_LatestBounded(t *testing.T) {
	s := newSim(t, func(c *config.Config) { c.BufferSize = 10 })
	for i := 0; i < 25; i++ {
		s.Step()
	}

	all := s.Latest(100)
	require.Len(t, all, 10)
	assert.Equal(t, int64(15), all[0].ID)
	assert.Equal(t, int64(24), all[9].ID)

	last := s.Latest(3)
	require.Len(t, last, 3)
	assert.Equal(t, []int64{22, 23, 24}, []int64{last[0].ID, last[1].ID, last[2].ID})

	last[0].ID = -1
	assert.Equal(t, int64(22), s.Latest(3)[0].ID, "Latest must return a copy")
}

func TestSimulator_PrefillBackdates(t *testing.T) {
	s := newSim(t, nil)
	s.Prefill(5, time.Second)

	got := s.Latest(5)
	require.Len(t, got, 5)
	assert.Equal(t, s.now(), got[4].Timestamp)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, time.Second, got[i].Timestamp.Sub(got[i-1].Timestamp))
		assert.Equal(t, got[i-1].ID+1, got[i].ID)
	}
}

func TestSimulator_CombinedFlagConsistent(t *testing.T) {
	s := newSim(t, func(c *config.Config) { c.Anomalies.AutoProbability = 0.2 })
	s.Prefill(300, time.Second)
	for _, r := range s.Latest(300) {
		assert.Equal(t, r.IsoFlag || r.LRBattFlag || r.RuleFlag, r.CombinedFlag, "id %d", r.ID)
	}
}

func TestStats(t *testing.T) {
	readings := []types.Reading{
		{RuleFlag: true, CombinedFlag: true},
		{RuleFlag: true, IsoFlag: true, CombinedFlag: true},
		{IsoFlag: true, CombinedFlag: true},
		{LRBattFlag: true, CombinedFlag: true},
		{},
	}
	assert.Equal(t, types.HealthSummary{Critical: 2, Warning: 2, Normal: 1}, Stats(readings))
	assert.Equal(t, types.HealthSummary{}, Stats(nil))
}
