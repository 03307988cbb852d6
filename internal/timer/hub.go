package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/workout-timer/internal/clock"
	"alcyxob/workout-timer/internal/metrics"
)

const defaultIdleTimeout = 30 * time.Minute

// HubConfig describes how coordinators are built for each user.
type HubConfig struct {
	Base Options
	// LogsFor returns the program-log backend scoped to one user.
	LogsFor func(userID string) ProgramLog
	// IdleTimeout is how long a coordinator without a running timer is kept
	// after its last use. Zero means 30 minutes.
	IdleTimeout time.Duration
}

type hubEntry struct {
	c        *Coordinator
	lastUsed time.Time
}

// Hub keeps one Coordinator per user and drives their ticks. Coordinators
// that have been idle longer than the idle timeout are closed and dropped;
// their snapshots stay in the store and are picked up when the user selects
// the day again.
type Hub struct {
	cfg   HubConfig
	clock clock.Clock

	mu           sync.Mutex
	coordinators map[string]*hubEntry

	// closes of evicted coordinators
	evictions sync.WaitGroup
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	clk := cfg.Base.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Hub{
		cfg:          cfg,
		clock:        clk,
		coordinators: make(map[string]*hubEntry),
	}
}

// For returns the coordinator of userID, creating it on first use.
func (h *Hub) For(userID string) *Coordinator {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	if e, ok := h.coordinators[userID]; ok {
		e.lastUsed = now
		return e.c
	}

	opts := h.cfg.Base
	opts.Logger = opts.Logger.With().Str("user_id", userID).Logger()
	if h.cfg.LogsFor != nil {
		opts.Logs = h.cfg.LogsFor(userID)
	}
	c := NewCoordinator(opts)
	h.coordinators[userID] = &hubEntry{c: c, lastUsed: now}
	metrics.ActiveCoordinators.Set(float64(len(h.coordinators)))
	return c
}

// Len returns the number of live coordinators.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.coordinators)
}

func (h *Hub) snapshot() []*Coordinator {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Coordinator, 0, len(h.coordinators))
	for _, e := range h.coordinators {
		out = append(out, e.c)
	}
	return out
}

// Tick ticks every coordinator once, then evicts idle ones.
func (h *Hub) Tick() {
	for _, c := range h.snapshot() {
		c.Tick()
	}
	h.evictIdle()
}

func (h *Hub) evictIdle() {
	now := h.clock.Now()

	h.mu.Lock()
	var evicted []*Coordinator
	for id, e := range h.coordinators {
		if now.Sub(e.lastUsed) < h.cfg.IdleTimeout || e.c.busy() {
			continue
		}
		delete(h.coordinators, id)
		evicted = append(evicted, e.c)
	}
	if len(evicted) > 0 {
		metrics.ActiveCoordinators.Set(float64(len(h.coordinators)))
	}
	h.mu.Unlock()

	for _, c := range evicted {
		h.evictions.Add(1)
		go func() {
			defer h.evictions.Done()
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.FlushTimeout)
			defer cancel()
			if err := c.Close(ctx); err != nil {
				c.deps.logger.Warn().Err(err).Msg("Failed to flush idle timer on eviction")
			}
		}()
	}
}

// Run ticks every interval until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Tick()
		}
	}
}

// Close flushes and closes every coordinator.
func (h *Hub) Close(ctx context.Context) error {
	var errs []error
	for _, c := range h.snapshot() {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	h.evictions.Wait()
	return errors.Join(errs...)
}
