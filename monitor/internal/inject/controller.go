package inject

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hex20/telemetry-health/pkg/types"
)

// DefaultTimeout bounds one injection command.
const DefaultTimeout = 5 * time.Second

// Injector delivers one injection command to the ingestion side.
type Injector interface {
	InjectAnomaly(ctx context.Context, kind types.AnomalyKind) error
}

// Stats are the controller's running counters.
type Stats struct {
	Sent     uint64            `json:"sent"`
	Failed   uint64            `json:"failed"`
	LastKind types.AnomalyKind `json:"last_kind,omitempty"`
}

// Controller issues fire-and-forget injection commands.
type Controller struct {
	injector Injector

	mu       sync.RWMutex
	selector Selector
	timeout  time.Duration
	last     types.AnomalyKind

	inflight sync.WaitGroup
	sent     atomic.Uint64
	failed   atomic.Uint64
}

// New returns a Controller sending through injector. A nil selector means
// round-robin.
func New(injector Injector, selector Selector) *Controller {
	if selector == nil {
		selector = NewRoundRobin()
	}
	return &Controller{injector: injector, selector: selector, timeout: DefaultTimeout}
}

// SetSelector swaps the selection policy. Used on config reload.
func (c *Controller) SetSelector(s Selector) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.selector = s
	c.mu.Unlock()
}

// SetTimeout changes the per-command timeout. Non-positive values are ignored.
func (c *Controller) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// InjectNext selects the next kind and dispatches it. It returns the kind
// immediately; delivery happens in the background and outlives ctx
// cancellation, bounded only by the controller timeout.
func (c *Controller) InjectNext(ctx context.Context) types.AnomalyKind {
	c.mu.RLock()
	kind := c.selector.Next()
	c.mu.RUnlock()

	c.Inject(ctx, kind)
	return kind
}

// Inject dispatches kind in the background.
func (c *Controller) Inject(ctx context.Context, kind types.AnomalyKind) {
	c.mu.Lock()
	timeout := c.timeout
	c.last = kind
	c.mu.Unlock()

	// The request that triggered us usually ends before delivery does.
	bg := context.WithoutCancel(ctx)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		ictx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()

		if err := c.injector.InjectAnomaly(ictx, kind); err != nil {
			c.failed.Add(1)
			slog.Warn("inject: command failed", "kind", kind, "err", err)
			return
		}
		c.sent.Add(1)
		slog.Info("inject: command sent", "kind", kind)
	}()
}

// Wait blocks until every dispatched command has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Stats returns a copy of the running counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	last := c.last
	c.mu.RUnlock()
	return Stats{Sent: c.sent.Load(), Failed: c.failed.Load(), LastKind: last}
}
