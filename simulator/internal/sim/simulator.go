package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/hex20/telemetry-health/pkg/types"
	"github.com/hex20/telemetry-health/simulator/internal/config"
)

// Simulator owns the generated reading buffer. All methods are safe for
// concurrent use.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	gen     *Generator
	det     *Detector
	buf     []types.Reading
	size    int
	tick    int64
	active  types.AnomalyKind
	left    int
	autoP   float64
	lasting int
	now     func() time.Time
}

// New returns a Simulator configured by cfg. A zero cfg.Seed seeds from the
// clock.
func New(cfg *config.Config) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return &Simulator{
		rng:     rng,
		gen:     NewGenerator(rng),
		det:     NewDetector(cfg.Detector),
		buf:     make([]types.Reading, 0, cfg.BufferSize),
		size:    cfg.BufferSize,
		autoP:   cfg.Anomalies.AutoProbability,
		lasting: cfg.Anomalies.Duration,
		now:     time.Now,
	}
}

// Step generates, scores and buffers the next reading.
func (s *Simulator) Step() types.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepLocked(s.now())
}

// Prefill generates n readings back-dated by interval so the newest lands
// at the current time.
func (s *Simulator) Prefill(n int, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.now()
	for i := n - 1; i >= 0; i-- {
		s.stepLocked(end.Add(-time.Duration(i) * interval))
	}
}

func (s *Simulator) stepLocked(at time.Time) types.Reading {
	r := s.gen.Base(s.tick)
	r.ID = s.tick
	r.Timestamp = at.UTC().Truncate(time.Millisecond)

	if s.left == 0 && s.autoP > 0 && s.rng.Float64() < s.autoP {
		kind := types.AnomalyKinds[s.rng.Intn(len(types.AnomalyKinds))]
		s.injectLocked(kind)
		slog.Info("auto anomaly injected", "type", kind, "tick", s.tick)
	}
	if s.left > 0 {
		s.gen.Apply(&r, s.active)
		s.left--
		if s.left == 0 {
			s.active = ""
		}
	}
	r = s.det.Score(r)

	s.buf = append(s.buf, r)
	if len(s.buf) > s.size {
		s.buf = s.buf[len(s.buf)-s.size:]
	}
	s.tick++
	return r
}

// Inject starts an anomaly of kind on the next generated reading. A new
// injection replaces any active one and restarts its duration.
func (s *Simulator) Inject(kind types.AnomalyKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injectLocked(kind)
}

func (s *Simulator) injectLocked(kind types.AnomalyKind) {
	s.active = kind
	s.left = s.lasting
}

// Active reports the active anomaly and how many readings it has left.
func (s *Simulator) Active() (types.AnomalyKind, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.left
}

// Latest returns a copy of up to n of the newest readings, oldest first.
func (s *Simulator) Latest(n int) []types.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := make([]types.Reading, n)
	copy(out, s.buf[len(s.buf)-n:])
	return out
}

// Run steps once per interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r := s.Step()
			if r.CombinedFlag {
				slog.Debug("flagged reading", "id", r.ID, "rule", r.RuleFlag, "iso", r.IsoFlag, "lr", r.LRBattFlag)
			}
		}
	}
}

// Stats counts readings the way the upstream /stats endpoint does: rule hits
// are critical, other combined hits are warnings and the rest are normal.
func Stats(readings []types.Reading) types.HealthSummary {
	var sum types.HealthSummary
	for _, r := range readings {
		switch {
		case r.RuleFlag:
			sum.Critical++
		case r.CombinedFlag:
			sum.Warning++
		default:
			sum.Normal++
		}
	}
	return sum
}
