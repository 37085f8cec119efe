// Package poller drives the periodic usage fetch. A single controller owns
// the schedule; at most one fetch runs at any moment, and manual refreshes
// arriving mid-fetch coalesce into one follow-up cycle instead of stacking.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/source"
)

// State describes what the controller is doing right now.
type State string

const (
	StateStopped  State = "stopped"
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

// Processor consumes each snapshot before observers see it. The alerts
// engine implements this.
type Processor interface {
	Process(snapshot api.Snapshot)
}

// Observer receives every snapshot the controller produces.
type Observer func(snapshot api.Snapshot)

type observerEntry struct {
	token string
	fn    Observer
}

// Controller schedules usage fetches against a source.Client. All public
// methods are safe for concurrent use.
type Controller struct {
	source    source.Client
	processor Processor
	logger    *slog.Logger
	interval  time.Duration

	mu               sync.Mutex
	running          bool
	fetching         bool
	pendingImmediate bool
	timer            *time.Timer
	last             api.Snapshot
	hasLast          bool
	observers        []observerEntry
}

// New creates a poll controller. processor may be nil.
func New(src source.Client, processor Processor, interval time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		source:    src,
		processor: processor,
		logger:    logger,
		interval:  interval,
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.fetching:
		return StateFetching
	case c.running:
		return StateIdle
	default:
		return StateStopped
	}
}

// LastSnapshot returns the most recent snapshot, if any cycle has completed.
func (c *Controller) LastSnapshot() (api.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// OnSnapshotUpdated registers an observer. Observers are invoked in
// registration order, synchronously on the polling goroutine, after the
// processor has seen the snapshot. The returned token unsubscribes.
func (c *Controller) OnSnapshotUpdated(fn Observer) string {
	token := uuid.NewString()
	c.mu.Lock()
	c.observers = append(c.observers, observerEntry{token: token, fn: fn})
	c.mu.Unlock()
	return token
}

// Unsubscribe removes a previously registered observer. Unknown tokens are
// ignored.
func (c *Controller) Unsubscribe(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.observers {
		if entry.token == token {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// Start begins polling. The first cycle fires immediately. Starting an
// already running controller is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.logger.Info("Polling started", "interval", c.interval)
	c.scheduleLocked(0)
}

// Stop halts polling. Any in-flight fetch completes and publishes its
// snapshot, but no further cycle is scheduled.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.pendingImmediate = false
	c.stopTimerLocked()
	c.logger.Info("Polling stopped")
}

// RefreshNow forces a fetch. When idle it runs the cycle synchronously and
// returns the fresh snapshot. When a fetch is already in flight it marks one
// follow-up cycle pending and returns the last published snapshot, so any
// burst of refresh requests costs at most one extra fetch. When stopped it
// restarts polling, beginning with this cycle.
func (c *Controller) RefreshNow(ctx context.Context) api.Snapshot {
	c.mu.Lock()
	if c.fetching {
		c.pendingImmediate = true
		last := c.last
		c.mu.Unlock()
		return last
	}
	c.running = true
	c.stopTimerLocked()
	c.fetching = true
	c.mu.Unlock()

	return c.runCycle(ctx)
}

// tick is the timer callback for a scheduled cycle.
func (c *Controller) tick() {
	c.mu.Lock()
	if !c.running || c.fetching {
		c.mu.Unlock()
		return
	}
	c.fetching = true
	c.mu.Unlock()

	c.runCycle(context.Background())
}

// runCycle performs one fetch and publishes the result. Callers must have
// set fetching under the lock.
func (c *Controller) runCycle(ctx context.Context) api.Snapshot {
	snapshot := c.source.Fetch(ctx)
	if c.processor != nil {
		c.processor.Process(snapshot)
	}

	c.mu.Lock()
	c.last = snapshot
	c.hasLast = true
	c.fetching = false

	// Credential failures halt the loop entirely; polling again cannot
	// succeed until the user intervenes, and retrying a dead key risks
	// tripping upstream abuse detection.
	if snapshot.Status == api.StatusUnauthorized || snapshot.Status == api.StatusMissingKey {
		c.running = false
		c.pendingImmediate = false
		c.logger.Warn("Polling halted", "status", snapshot.Status, "message", snapshot.Message)
	}

	if c.running {
		delay := time.Duration(0)
		if !c.pendingImmediate {
			delay = NextDelay(c.interval, snapshot.Status)
		}
		c.pendingImmediate = false
		c.scheduleLocked(delay)
	}

	observers := make([]observerEntry, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, entry := range observers {
		entry.fn(snapshot)
	}
	return snapshot
}

func (c *Controller) scheduleLocked(delay time.Duration) {
	c.stopTimerLocked()
	c.timer = time.AfterFunc(delay, c.tick)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
