package inject

import (
	"math/rand"
	"sync"

	"github.com/hex20/telemetry-health/pkg/types"
)

// Selector chooses the next anomaly kind to inject.
type Selector interface {
	Next() types.AnomalyKind
}

// RoundRobin cycles battery, temp, comm, battery, ... It is safe for
// concurrent use.
type RoundRobin struct {
	mu sync.Mutex
	i  int
}

// NewRoundRobin returns a RoundRobin starting at battery.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (s *RoundRobin) Next() types.AnomalyKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := types.AnomalyKinds[s.i]
	s.i = (s.i + 1) % len(types.AnomalyKinds)
	return k
}

// Random picks uniformly from the rotation using its own source, so tests
// can seed it.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random selector drawing from src.
func NewRandom(src rand.Source) *Random {
	return &Random{rng: rand.New(src)}
}

func (s *Random) Next() types.AnomalyKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.AnomalyKinds[s.rng.Intn(len(types.AnomalyKinds))]
}

// SelectorFor maps a config name to a Selector: "random" draws from src,
// anything else is round-robin.
func SelectorFor(name string, src rand.Source) Selector {
	if name == "random" {
		return NewRandom(src)
	}
	return NewRoundRobin()
}
