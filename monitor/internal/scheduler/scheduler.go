package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hex20/telemetry-health/monitor/internal/ingest"
	"github.com/hex20/telemetry-health/monitor/internal/window"
)

// ErrAlreadyRunning is returned by Start on a scheduler that is running.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Fetcher pulls the current batch of readings from the ingestion side.
type Fetcher interface {
	FetchReadings(ctx context.Context) (ingest.DecodeResult, error)
}

// Options tunes a Scheduler. The zero value is usable.
type Options struct {
	// FetchTimeout bounds a single refresh. Zero leaves it to the fetcher.
	FetchTimeout time.Duration
}

// Stats are the scheduler's running counters.
type Stats struct {
	Refreshes   uint64    `json:"refreshes"`
	Failures    uint64    `json:"failures"`
	Skipped     uint64    `json:"skipped"`
	LastError   string     `json:"last_error,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"` // nil until the first failure
	Running     bool       `json:"running"`
}

// Scheduler refreshes a window.Window from a Fetcher.
type Scheduler struct {
	fetcher Fetcher
	win     *window.Window
	opts    Options

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr string
	lastAt  time.Time

	inflight atomic.Bool
	workers  sync.WaitGroup

	refreshes atomic.Uint64
	failures  atomic.Uint64
	skipped   atomic.Uint64

	now       func() time.Time
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// New returns a stopped Scheduler that writes into win.
func New(fetcher Fetcher, win *window.Window, opts Options) *Scheduler {
	return &Scheduler{
		fetcher:   fetcher,
		win:       win,
		opts:      opts,
		now:       time.Now,
		newTicker: realTicker,
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start begins periodic refresh: one refresh now, then one every interval.
// onTick, if non-nil, is called with the installed snapshot after each
// successful refresh, on the worker goroutine.
func (s *Scheduler) Start(interval time.Duration, onTick func(*window.Snapshot)) error {
	if interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, interval, onTick, s.done)
	slog.Info("scheduler: started", "interval", interval)
	return nil
}

// Stop cancels periodic refresh and blocks until the loop and any in-flight
// refresh have exited. Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.workers.Wait()
	slog.Info("scheduler: stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, onTick func(*window.Snapshot), done chan struct{}) {
	defer close(done)

	s.trigger(ctx, onTick)

	tick, stop := s.newTicker(interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.trigger(ctx, onTick)
		}
	}
}

// trigger launches a refresh unless one is already in flight.
func (s *Scheduler) trigger(ctx context.Context, onTick func(*window.Snapshot)) {
	if !s.inflight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		slog.Debug("scheduler: previous refresh still running, tick skipped")
		return
	}

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.inflight.Store(false)

		snap, err := s.Refresh(ctx)
		if err != nil || onTick == nil {
			return
		}
		onTick(snap)
	}()
}

// Refresh fetches once and, on success, replaces the window. On failure the
// window keeps its previous contents and the error is returned. A result
// that arrives after ctx is cancelled is discarded.
func (s *Scheduler) Refresh(ctx context.Context) (*window.Snapshot, error) {
	fctx := ctx
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}

	res, err := s.fetcher.FetchReadings(fctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		s.failures.Add(1)
		s.mu.Lock()
		s.lastErr, s.lastAt = err.Error(), s.now()
		s.mu.Unlock()
		slog.Warn("scheduler: refresh failed, keeping previous window", "err", err)
		return nil, err
	}

	snap := s.win.Replace(res.Readings, res.Rejected)
	s.refreshes.Add(1)
	slog.Debug("scheduler: window refreshed",
		"readings", snap.Len(), "rejected", res.Rejected, "generation", snap.Generation)
	return snap, nil
}

// Stats returns a copy of the running counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Refreshes: s.refreshes.Load(),
		Failures:  s.failures.Load(),
		Skipped:   s.skipped.Load(),
		LastError: s.lastErr,
		Running:   s.cancel != nil,
	}
	if !s.lastAt.IsZero() {
		at := s.lastAt
		st.LastFailure = &at
	}
	return st
}
