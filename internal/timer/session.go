package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alcyxob/workout-timer/internal/clock"
	"alcyxob/workout-timer/internal/metrics"

	"github.com/rs/zerolog"
)

type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionPaused  SessionState = "paused"
	SessionRunning SessionState = "running"
)

// deps are the collaborators shared by the timers of one coordinator.
type deps struct {
	clock  clock.Clock
	store  *SnapshotStore
	logs   ProgramLog
	notify Notifier
	logger zerolog.Logger
}

// SessionTimer tracks the active work time of one workout day.
//
// Elapsed time is never accumulated by ticks: while running it is derived
// from the anchor (now - anchor), so time spent suspended is never lost.
type SessionTimer struct {
	mu    sync.Mutex
	scope Scope
	deps

	running bool
	anchor  time.Time
	elapsed int64

	// logID is captured when the workout log is attached and is what every
	// later flush targets, even after the scope has been switched away.
	logID            string
	completed        bool
	completedSeconds int64
	reconciled       bool
	dirty            bool
	detached         bool
	lastFlush        time.Time

	// periodic async flushes still in flight
	inflight sync.WaitGroup
	// closed once an earlier save of this day, still in flight when the day
	// was loaded, has finished; our own saves must not land before it
	prior <-chan struct{}
}

// SessionStatus is a read-only view of a SessionTimer.
type SessionStatus struct {
	State             SessionState `json:"state"`
	ElapsedSeconds    int64        `json:"elapsedSeconds"`
	WorkoutLogID      string       `json:"workoutLogId,omitempty"`
	Completed         bool         `json:"completed"`
	CompletedSeconds  int64        `json:"completedSeconds,omitempty"`
	CheckpointPending bool         `json:"checkpointPending"`
}

// newSessionTimer loads the timer for scope. A local snapshot wins; without
// one the elapsed time is reconciled from the server checkpoint. A save of the
// same day that has not landed yet raises the result to its seconds.
func newSessionTimer(ctx context.Context, scope Scope, d deps, prior *pendingSave) *SessionTimer {
	t := &SessionTimer{scope: scope, deps: d}
	t.logger = d.logger.With().Str("scope", scope.Key.String()).Logger()

	if snap, ok := d.store.LoadSession(scope.Key); ok {
		t.restore(snap)
	} else {
		t.reconcile(ctx)
	}
	if prior != nil {
		t.adopt(prior)
	}
	return t
}

func (t *SessionTimer) adopt(p *pendingSave) {
	select {
	case <-p.done:
	default:
		t.prior = p.done
	}
	if t.completed || t.running {
		return
	}
	if t.logID == "" {
		t.logID = p.logID
		t.reconciled = true
	}
	if t.logID != p.logID || p.seconds <= t.elapsed {
		return
	}
	t.logger.Debug().Int64("seconds", p.seconds).Str("workout_log_id", p.logID).Msg("Using unsaved time of previous visit")
	t.elapsed = p.seconds
	t.dirty = true
}

func (t *SessionTimer) restore(snap TimerSnapshot) {
	t.elapsed = snap.ElapsedSeconds
	t.logID = snap.WorkoutLogID
	t.reconciled = true
	if snap.IsRunning {
		t.running = true
		t.anchor = time.UnixMilli(*snap.StartTimestamp)
		t.lastFlush = t.clock.Now()
	}
}

func (t *SessionTimer) reconcile(ctx context.Context) {
	key := t.scope.Key
	log, err := t.logs.FindSessionLog(ctx, key.ProgramID, key.Date)
	if errors.Is(err, ErrSessionLogNotFound) {
		t.reconciled = true
		return
	}
	if err != nil {
		// retried when Start attaches the log
		t.logger.Warn().Err(err).Msg("Failed to look up workout log for reconciliation")
		t.notice(NoticeReconcileFailed, "Could not load saved workout time; it will be restored when the timer starts")
		return
	}

	t.logID = log.ID
	t.reconciled = true
	if log.Completed {
		t.completed = true
		t.completedSeconds = log.TimerSeconds
		return
	}

	cp, err := t.logs.GetCheckpoint(ctx, log.ID)
	if err != nil {
		t.logger.Warn().Err(err).Str("workout_log_id", log.ID).Msg("Failed to read checkpoint, using log value")
		t.elapsed = log.TimerSeconds
		return
	}
	t.elapsed = cp.TimerSeconds
}

// Start moves Idle|Paused to Running. The first start of a day attaches a
// workout log; if that fails the timer does not start.
func (t *SessionTimer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	if t.completed {
		return ErrSessionCompleted
	}
	if t.running {
		return nil
	}

	if t.logID == "" {
		key := t.scope.Key
		log, err := t.logs.CreateSessionLog(ctx, key.ProgramID, t.scope.DayID, key.Date, t.scope.Title)
		if err != nil {
			t.logger.Warn().Err(err).Msg("Failed to create workout log, timer not started")
			t.notice(NoticeSessionLogFailed, "Could not start the workout timer: the workout log could not be created")
			return fmt.Errorf("%w: %w", ErrNoSessionLog, err)
		}
		if log.Completed {
			t.completed = true
			t.completedSeconds = log.TimerSeconds
			return ErrSessionCompleted
		}
		t.logID = log.ID
		if !t.reconciled {
			if log.TimerSeconds > t.elapsed {
				t.elapsed = log.TimerSeconds
			}
			t.reconciled = true
		}
	}

	now := t.clock.Now()
	t.anchor = now.Add(-time.Duration(t.elapsed) * time.Second)
	t.running = true
	t.lastFlush = now
	t.saveLocked(now)

	t.logger.Debug().Int64("elapsed_seconds", t.elapsed).Str("workout_log_id", t.logID).Msg("Session timer started")
	return nil
}

// SampleElapsed returns the elapsed seconds. Pure read, valid in any state.
func (t *SessionTimer) SampleElapsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampleLocked(t.clock.Now())
}

func (t *SessionTimer) sampleLocked(now time.Time) int64 {
	if t.running {
		return wholeSeconds(now.Sub(t.anchor))
	}
	return t.elapsed
}

// Pause moves Running to Paused and flushes the value to the checkpoint.
// A failed flush does not undo the pause; it returns ErrCheckpointNotSaved and
// the flush is retried at the next save point.
func (t *SessionTimer) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	if !t.running {
		return nil
	}

	now := t.clock.Now()
	t.elapsed = t.sampleLocked(now)
	t.running = false
	t.anchor = time.Time{}
	t.saveLocked(now)

	return t.flushLocked(ctx, now, t.elapsed)
}

// Complete finishes the workout day. The checkpoint flush and the completion
// call are always attempted; whatever they return, the timer stops and the
// local snapshot is deleted because the server record now owns the time.
func (t *SessionTimer) Complete(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	if t.completed {
		return ErrSessionCompleted
	}
	if t.logID == "" {
		return ErrNotStarted
	}

	now := t.clock.Now()
	seconds := t.sampleLocked(now)

	var errs []error
	if err := t.flushLocked(ctx, now, seconds); err != nil {
		errs = append(errs, err)
	}
	if err := t.logs.MarkComplete(ctx, t.logID); err != nil {
		t.logger.Warn().Err(err).Str("workout_log_id", t.logID).Msg("Failed to mark workout complete")
		t.notice(NoticeCompleteFailed, "Workout could not be marked complete on the server")
		errs = append(errs, fmt.Errorf("mark complete: %w", err))
	}

	t.running = false
	t.anchor = time.Time{}
	t.elapsed = 0
	t.completed = true
	t.completedSeconds = seconds
	t.dirty = false
	t.store.RemoveSession(t.scope.Key)

	return errors.Join(errs...)
}

// Reset discards the accumulated time of a day that has not been completed.
func (t *SessionTimer) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	if t.completed {
		return ErrSessionCompleted
	}

	t.running = false
	t.anchor = time.Time{}
	t.elapsed = 0
	t.store.RemoveSession(t.scope.Key)

	return t.flushLocked(ctx, t.clock.Now(), 0)
}

// FlushCheckpoint writes the current value to the checkpoint inline.
func (t *SessionTimer) FlushCheckpoint(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached || t.completed {
		return nil
	}
	if !t.running && !t.dirty {
		return nil
	}
	now := t.clock.Now()
	return t.flushLocked(ctx, now, t.sampleLocked(now))
}

// Status returns a consistent view of the timer.
func (t *SessionTimer) Status() SessionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := SessionStatus{
		ElapsedSeconds:    t.sampleLocked(t.clock.Now()),
		WorkoutLogID:      t.logID,
		Completed:         t.completed,
		CompletedSeconds:  t.completedSeconds,
		CheckpointPending: t.dirty,
	}
	switch {
	case t.running:
		st.State = SessionRunning
	case t.elapsed > 0:
		st.State = SessionPaused
	default:
		st.State = SessionIdle
	}
	return st
}

// handoff is what a detached timer leaves behind for the final flush.
type handoff struct {
	logID   string
	seconds int64
	flush   bool
	prior   <-chan struct{}
}

// detach freezes the timer; every later call on it is a no-op.
func (t *SessionTimer) detach() handoff {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := handoff{
		logID:   t.logID,
		seconds: t.sampleLocked(t.clock.Now()),
		prior:   t.prior,
	}
	h.flush = h.logID != "" && !t.completed && (t.running || t.dirty || h.seconds > 0)
	t.detached = true
	t.running = false
	return h
}

// checkpointDue reports whether a periodic flush is due and, if so, registers
// it as in flight. The caller must run periodicFlush with the returned values.
func (t *SessionTimer) checkpointDue(now time.Time, interval time.Duration) (string, int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if interval <= 0 || t.detached || !t.running || t.logID == "" {
		return "", 0, false
	}
	if t.prior != nil {
		select {
		case <-t.prior:
			t.prior = nil
		default:
			return "", 0, false
		}
	}
	if now.Sub(t.lastFlush) < interval {
		return "", 0, false
	}
	t.lastFlush = now
	t.inflight.Add(1)
	return t.logID, t.sampleLocked(now), true
}

// periodicFlush runs without the timer lock; inline flushes wait for it.
func (t *SessionTimer) periodicFlush(ctx context.Context, logID string, seconds int64) {
	err := t.logs.SaveCheckpoint(ctx, logID, seconds)
	metrics.CheckpointFlushes.WithLabelValues(metrics.FlushResult(err)).Inc()
	t.inflight.Done()
	if err == nil {
		return
	}

	t.logger.Warn().Err(err).Str("workout_log_id", logID).Int64("seconds", seconds).Msg("Periodic checkpoint flush failed")
	t.mu.Lock()
	if !t.detached && !t.completed {
		t.dirty = true
	}
	t.mu.Unlock()
}

func (t *SessionTimer) flushLocked(ctx context.Context, now time.Time, seconds int64) error {
	if t.logID == "" {
		return nil
	}
	// keep the server value monotonic with respect to our own writes
	t.inflight.Wait()
	if t.prior != nil {
		select {
		case <-t.prior:
			t.prior = nil
		case <-ctx.Done():
			t.dirty = true
			t.logger.Warn().Err(ctx.Err()).Str("workout_log_id", t.logID).Msg("Earlier save still in flight, checkpoint deferred")
			return fmt.Errorf("%w: %w", ErrCheckpointNotSaved, ctx.Err())
		}
	}

	err := t.logs.SaveCheckpoint(ctx, t.logID, seconds)
	metrics.CheckpointFlushes.WithLabelValues(metrics.FlushResult(err)).Inc()
	if err != nil {
		t.dirty = true
		t.logger.Warn().Err(err).Str("workout_log_id", t.logID).Int64("seconds", seconds).Msg("Checkpoint flush failed")
		t.notice(NoticeCheckpointFailed, "Workout time could not be saved to the server; it will be retried")
		return fmt.Errorf("%w: %w", ErrCheckpointNotSaved, err)
	}
	t.dirty = false
	t.lastFlush = now
	return nil
}

func (t *SessionTimer) saveLocked(now time.Time) {
	snap := TimerSnapshot{
		ScopeKey:       t.scope.Key.String(),
		IsRunning:      t.running,
		ElapsedSeconds: t.elapsed,
		WorkoutLogID:   t.logID,
		SavedAt:        now.UnixMilli(),
	}
	if t.running {
		snap.StartTimestamp = millis(t.anchor)
	}
	t.store.SaveSession(snap)
}

func (t *SessionTimer) notice(kind NoticeKind, msg string) {
	t.notify.Notify(Notice{Kind: kind, Scope: t.scope.Key.String(), Message: msg, At: t.clock.Now()})
}
