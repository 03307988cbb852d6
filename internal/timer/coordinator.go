package timer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"alcyxob/workout-timer/internal/clock"
	"alcyxob/workout-timer/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	defaultFlushTimeout       = 10 * time.Second
	defaultCheckpointInterval = 30 * time.Second
	defaultRestSeconds        = 60
)

// Options configure a Coordinator.
type Options struct {
	Clock    clock.Clock
	Store    *SnapshotStore
	Logs     ProgramLog
	Notifier Notifier
	Logger   zerolog.Logger

	// CheckpointInterval is how often a running session is flushed from Tick.
	// Zero disables periodic flushes.
	CheckpointInterval time.Duration
	FlushTimeout       time.Duration
	RestPresets        []int
	DefaultRestSeconds int
}

// Coordinator owns the timers of the currently viewed day and moves them
// between days without leaking time from one workout log into another.
//
// All operations serialize on one mutex. Ticks additionally check the halt
// flag, which a scope switch raises before anything else, so a tick that
// races with a switch never samples a half-torn-down timer.
type Coordinator struct {
	mu     sync.Mutex
	halted atomic.Bool
	closed bool

	opts    Options
	deps    deps
	presets []int64
	notices *NoticeBuffer

	scope   Scope
	session *SessionTimer
	rest    *RestTimer

	// async checkpoint flushes, never awaited by a switch
	flushes sync.WaitGroup

	// saves of detached days that have not landed yet, by scope
	pendingMu sync.Mutex
	pending   map[ScopeKey]*pendingSave
}

// pendingSave is the final checkpoint of a detached day while it is in
// flight. done is closed when the save has finished, successfully or not.
type pendingSave struct {
	logID   string
	seconds int64
	done    chan struct{}
}

// Status is everything a client needs to render the timers of a day.
type Status struct {
	Scope     string        `json:"scope"`
	Date      string        `json:"date"`
	ProgramID string        `json:"programId"`
	DayID     string        `json:"dayId,omitempty"`
	Title     string        `json:"title,omitempty"`
	Session   SessionStatus `json:"session"`
	Rest      RestStatus    `json:"rest"`
}

func NewCoordinator(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultFlushTimeout
	}
	if opts.CheckpointInterval < 0 {
		opts.CheckpointInterval = defaultCheckpointInterval
	}
	if opts.DefaultRestSeconds <= 0 {
		opts.DefaultRestSeconds = defaultRestSeconds
	}

	presets := make([]int64, 0, len(opts.RestPresets))
	for _, p := range opts.RestPresets {
		presets = append(presets, int64(p))
	}

	notices := NewNoticeBuffer(0)
	return &Coordinator{
		opts:    opts,
		presets: presets,
		notices: notices,
		pending: make(map[ScopeKey]*pendingSave),
		deps: deps{
			clock:  opts.Clock,
			store:  opts.Store,
			logs:   opts.Logs,
			notify: Notifiers{notices, opts.Notifier},
			logger: opts.Logger,
		},
	}
}

// SwitchScope makes scope the active day. The outgoing session is flushed to
// its own workout log in the background and its snapshots are removed; the
// incoming day is loaded from its snapshot or reconciled from the server.
func (c *Coordinator) SwitchScope(ctx context.Context, scope Scope) (Status, error) {
	if err := scope.Key.Validate(); err != nil {
		return Status{}, err
	}

	c.halted.Store(true)
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.halted.Store(false)

	if c.closed {
		return Status{}, ErrDetached
	}
	if c.session != nil && c.scope.Key == scope.Key {
		c.scope.DayID, c.scope.Title = scope.DayID, scope.Title
		return c.statusLocked(), nil
	}

	if c.session != nil {
		c.releaseLocked()
	}

	prior := c.awaitPending(ctx, scope.Key)
	c.scope = scope
	c.session = newSessionTimer(ctx, scope, c.deps, prior)
	c.rest = newRestTimer(scope, c.deps, c.presets, int64(c.opts.DefaultRestSeconds))

	c.deps.logger.Debug().Str("scope", scope.Key.String()).Msg("Timer scope switched")
	return c.statusLocked(), nil
}

func (c *Coordinator) releaseLocked() {
	old := c.scope
	h := c.session.detach()
	c.rest.detach()

	if h.flush {
		p := &pendingSave{logID: h.logID, seconds: h.seconds, done: make(chan struct{})}
		c.pendingMu.Lock()
		c.pending[old.Key] = p
		c.pendingMu.Unlock()
		c.flushDetached(old, c.session, h, p)
	}
	c.deps.store.Remove(old.Key)
	metrics.ScopeSwitches.Inc()

	c.session, c.rest = nil, nil
}

func (c *Coordinator) flushDetached(old Scope, t *SessionTimer, h handoff, p *pendingSave) {
	logger := c.deps.logger.With().Str("scope", old.Key.String()).Str("workout_log_id", h.logID).Logger()

	c.flushes.Add(1)
	go func() {
		defer c.flushes.Done()
		defer close(p.done)
		t.inflight.Wait()
		if h.prior != nil {
			<-h.prior
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.FlushTimeout)
		defer cancel()

		err := c.deps.logs.SaveCheckpoint(ctx, h.logID, h.seconds)
		metrics.CheckpointFlushes.WithLabelValues(metrics.FlushResult(err)).Inc()
		if err != nil {
			logger.Error().Err(err).Int64("seconds", h.seconds).Msg("Failed to flush checkpoint of previous day")
			c.deps.notify.Notify(Notice{
				Kind:    NoticeCheckpointFailed,
				Scope:   old.Key.String(),
				Message: "Workout time of the previous day could not be saved",
				At:      c.deps.clock.Now(),
			})
			return
		}
		c.pendingMu.Lock()
		if c.pending[old.Key] == p {
			delete(c.pending, old.Key)
		}
		c.pendingMu.Unlock()
		logger.Debug().Int64("seconds", h.seconds).Msg("Flushed checkpoint of previous day")
	}()
}

// awaitPending waits, bounded by ctx, for the in-flight save of a day the user
// is returning to. It hands over the save when it has not landed: the new
// timer then keeps at least its seconds and orders its own flushes after it.
func (c *Coordinator) awaitPending(ctx context.Context, key ScopeKey) *pendingSave {
	c.pendingMu.Lock()
	p := c.pending[key]
	c.pendingMu.Unlock()
	if p == nil {
		return nil
	}

	select {
	case <-p.done:
	case <-ctx.Done():
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending[key] != p {
		return nil
	}
	delete(c.pending, key)
	return p
}

func (c *Coordinator) StartSession(ctx context.Context) (Status, error) {
	return c.withSession(func(s *SessionTimer) error { return s.Start(ctx) })
}

func (c *Coordinator) PauseSession(ctx context.Context) (Status, error) {
	return c.withSession(func(s *SessionTimer) error { return s.Pause(ctx) })
}

// CompleteSession completes the day and drops every local trace of it.
func (c *Coordinator) CompleteSession(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return Status{}, err
	}
	err := c.session.Complete(ctx)
	if errors.Is(err, ErrNotStarted) || errors.Is(err, ErrSessionCompleted) {
		return c.statusLocked(), err
	}
	_ = c.rest.Reset()
	c.deps.store.Remove(c.scope.Key)
	return c.statusLocked(), err
}

func (c *Coordinator) ResetSession(ctx context.Context) (Status, error) {
	return c.withSession(func(s *SessionTimer) error { return s.Reset(ctx) })
}

func (c *Coordinator) StartRest(seconds int64) (Status, error) {
	return c.withRest(func(r *RestTimer) error {
		if seconds == 0 {
			seconds = r.Status().DurationSeconds
		}
		return r.Start(seconds)
	})
}

func (c *Coordinator) PauseRest() (Status, error) {
	return c.withRest(func(r *RestTimer) error { return r.Pause() })
}

func (c *Coordinator) ResumeRest() (Status, error) {
	return c.withRest(func(r *RestTimer) error { return r.Resume() })
}

func (c *Coordinator) ResetRest() (Status, error) {
	return c.withRest(func(r *RestTimer) error { return r.Reset() })
}

// SetRestDuration returns changed=false when the countdown is not stopped.
func (c *Coordinator) SetRestDuration(seconds int64) (st Status, changed bool, err error) {
	st, err = c.withRest(func(r *RestTimer) (err error) {
		changed, err = r.SetDuration(seconds)
		return err
	})
	return st, changed, err
}

func (c *Coordinator) ApplyRestPreset(seconds int64) (st Status, changed bool, err error) {
	st, err = c.withRest(func(r *RestTimer) (err error) {
		changed, err = r.ApplyPreset(seconds)
		return err
	})
	return st, changed, err
}

// State returns the status of the active day.
func (c *Coordinator) State() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return Status{}, err
	}
	return c.statusLocked(), nil
}

// Tick samples the timers: it detects rest completion and starts a periodic
// checkpoint flush of a running session. It is a no-op during a scope switch.
func (c *Coordinator) Tick() {
	if c.halted.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted.Load() || c.closed || c.session == nil {
		return
	}

	c.rest.Sample()

	logID, seconds, due := c.session.checkpointDue(c.deps.clock.Now(), c.opts.CheckpointInterval)
	if !due {
		return
	}
	s := c.session
	c.flushes.Add(1)
	go func() {
		defer c.flushes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.FlushTimeout)
		defer cancel()
		s.periodicFlush(ctx, logID, seconds)
	}()
}

// ResumeFromBackground is called when the client returns after being
// suspended. Elapsed time needs no catching up; a finished rest countdown is
// reported and a running session is checkpointed.
func (c *Coordinator) ResumeFromBackground(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return Status{}, err
	}
	c.rest.Sample()
	err := c.session.FlushCheckpoint(ctx)
	return c.statusLocked(), err
}

func (c *Coordinator) DrainNotices() []Notice {
	return c.notices.Drain()
}

// Close flushes a running session inline and keeps its snapshot so the
// timer survives a restart. It waits for outstanding async flushes.
func (c *Coordinator) Close(ctx context.Context) error {
	c.halted.Store(true)
	c.mu.Lock()
	var err error
	if !c.closed && c.session != nil {
		err = c.session.FlushCheckpoint(ctx)
	}
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return err
}

// Wait blocks until every async checkpoint flush has finished.
func (c *Coordinator) Wait() {
	c.flushes.Wait()
}

// busy reports whether the coordinator must not be evicted: a timer is
// running, a switch is in progress or a save is still in flight.
func (c *Coordinator) busy() bool {
	if c.halted.Load() || !c.mu.TryLock() {
		return true
	}
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.pendingMu.Lock()
	pending := len(c.pending)
	c.pendingMu.Unlock()
	if pending > 0 {
		return true
	}
	if c.session == nil {
		return false
	}
	return c.session.Status().State == SessionRunning || c.rest.Status().State == RestRunning
}

func (c *Coordinator) withSession(fn func(*SessionTimer) error) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return Status{}, err
	}
	err := fn(c.session)
	return c.statusLocked(), err
}

func (c *Coordinator) withRest(fn func(*RestTimer) error) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return Status{}, err
	}
	err := fn(c.rest)
	return c.statusLocked(), err
}

func (c *Coordinator) readyLocked() error {
	if c.closed {
		return ErrDetached
	}
	if c.session == nil {
		return ErrNoScope
	}
	return nil
}

func (c *Coordinator) statusLocked() Status {
	return Status{
		Scope:     c.scope.Key.String(),
		Date:      c.scope.Key.Date,
		ProgramID: c.scope.Key.ProgramID,
		DayID:     c.scope.DayID,
		Title:     c.scope.Title,
		Session:   c.session.Status(),
		Rest:      c.rest.Status(),
	}
}
