package window

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/hex20/telemetry-health/pkg/types"
)

// DefaultCapacity is the number of readings retained when no capacity is
// configured.
const DefaultCapacity = 500

// Order selects the timestamp ordering returned by Visible.
type Order int

const (
	// Ascending orders oldest first, as charts want.
	Ascending Order = iota
	// Descending orders newest first, as event lists want.
	Descending
)

// ParseOrder maps "asc" / "desc" to an Order. Anything else is Ascending.
func ParseOrder(s string) Order {
	if s == "desc" {
		return Descending
	}
	return Ascending
}

// Snapshot is one immutable generation of the window.
// Callers must not modify Readings.
type Snapshot struct {
	// Readings in insertion order, at most the window capacity.
	Readings []types.Reading

	// RefreshedAt is when this generation was installed. Zero for the
	// initial empty snapshot.
	RefreshedAt time.Time

	// Rejected is the number of malformed readings dropped from the batch
	// that produced this generation.
	Rejected int

	// Generation increases by one on every Replace.
	Generation uint64
}

// Len returns the number of readings in s.
func (s *Snapshot) Len() int {
	return len(s.Readings)
}

// Visible returns the most recent depth readings by timestamp, sorted in the
// requested order. depth <= 0 or beyond the window returns every reading.
// The result is a fresh slice; s is not modified.
func (s *Snapshot) Visible(depth int, order Order) []types.Reading {
	out := make([]types.Reading, len(s.Readings))
	copy(out, s.Readings)

	// Stable so equal timestamps keep arrival order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if depth > 0 && depth < len(out) {
		out = out[len(out)-depth:]
	}
	if order == Descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Find returns the reading with the given id.
func (s *Snapshot) Find(id int64) (types.Reading, bool) {
	for i := range s.Readings {
		if s.Readings[i].ID == id {
			return s.Readings[i], true
		}
	}
	return types.Reading{}, false
}

// Latest returns the reading with the newest timestamp. Later arrivals win
// ties.
func (s *Snapshot) Latest() (types.Reading, bool) {
	if len(s.Readings) == 0 {
		return types.Reading{}, false
	}
	latest := s.Readings[0]
	for _, r := range s.Readings[1:] {
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	return latest, true
}

// Window is the bounded, atomically replaced reading buffer.
//
// All exported methods are safe for concurrent use.
type Window struct {
	capacity int
	cur      atomic.Pointer[Snapshot]
	now      func() time.Time // injectable for deterministic tests
}

// New creates an empty Window that retains at most capacity readings.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	w := &Window{capacity: capacity, now: time.Now}
	w.cur.Store(&Snapshot{Readings: []types.Reading{}})
	return w
}

// Capacity returns the maximum number of readings retained.
func (w *Window) Capacity() int {
	return w.capacity
}

// Replace installs readings as the new window generation, keeping only the
// newest Capacity readings by insertion order. The caller's slice is copied,
// so it may be reused afterwards. rejected is carried on the Snapshot for
// reporting. Replace returns the installed Snapshot.
func (w *Window) Replace(readings []types.Reading, rejected int) *Snapshot {
	if len(readings) > w.capacity {
		readings = readings[len(readings)-w.capacity:]
	}
	kept := make([]types.Reading, len(readings))
	copy(kept, readings)

	for {
		prev := w.cur.Load()
		next := &Snapshot{
			Readings:    kept,
			RefreshedAt: w.now(),
			Rejected:    rejected,
			Generation:  prev.Generation + 1,
		}
		if w.cur.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Snapshot returns the current generation. Every analysis serving one
// request should use a single Snapshot.
func (w *Window) Snapshot() *Snapshot {
	return w.cur.Load()
}

// Visible is shorthand for w.Snapshot().Visible(depth, order).
func (w *Window) Visible(depth int, order Order) []types.Reading {
	return w.Snapshot().Visible(depth, order)
}

// Len returns the number of readings in the current generation.
func (w *Window) Len() int {
	return w.Snapshot().Len()
}
