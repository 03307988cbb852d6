package timer

import (
	"slices"
	"sync"
	"time"

	"alcyxob/workout-timer/internal/metrics"
)

type RestState string

const (
	RestStopped RestState = "stopped"
	RestRunning RestState = "running"
	RestPaused  RestState = "paused"
)

// RestTimer is a countdown between sets. Like the session timer it derives
// the remaining time from an anchor instead of counting ticks.
type RestTimer struct {
	mu    sync.Mutex
	scope Scope
	deps

	presets  []int64
	duration int64

	state RestState
	// consumed seconds while paused; anchor while running
	consumed int64
	anchor   time.Time
	detached bool
}

// RestStatus is a read-only view of a RestTimer.
type RestStatus struct {
	State            RestState `json:"state"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	DurationSeconds  int64     `json:"durationSeconds"`
	Presets          []int64   `json:"presets"`
}

func newRestTimer(scope Scope, d deps, presets []int64, defaultSeconds int64) *RestTimer {
	t := &RestTimer{
		scope:    scope,
		deps:     d,
		presets:  presets,
		duration: defaultSeconds,
		state:    RestStopped,
	}
	t.logger = d.logger.With().Str("scope", scope.Key.String()).Str("timer", "rest").Logger()

	if snap, ok := d.store.LoadRest(scope.Key); ok {
		t.duration = snap.DurationSeconds
		switch {
		case snap.IsRunning:
			t.state = RestRunning
			t.anchor = time.UnixMilli(*snap.StartTimestamp)
		case (snap.IsPaused || snap.ElapsedSeconds > 0) && snap.ElapsedSeconds < snap.DurationSeconds:
			t.state = RestPaused
			t.consumed = snap.ElapsedSeconds
		}
	}
	return t
}

// Start begins a countdown of seconds from the Stopped state. A running or
// paused countdown is restarted.
func (t *RestTimer) Start(seconds int64) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	now := t.clock.Now()
	t.duration = seconds
	t.state = RestRunning
	t.anchor = now
	t.consumed = 0
	t.saveLocked(now)
	return nil
}

func (t *RestTimer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	if t.state != RestRunning {
		return nil
	}
	now := t.clock.Now()
	consumed := wholeSeconds(now.Sub(t.anchor))
	if consumed >= t.duration {
		// completion is reported by the next Sample
		return nil
	}
	t.state = RestPaused
	t.consumed = consumed
	t.anchor = time.Time{}
	t.saveLocked(now)
	return nil
}

func (t *RestTimer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	if t.state != RestPaused {
		return nil
	}
	now := t.clock.Now()
	t.anchor = now.Add(-time.Duration(t.consumed) * time.Second)
	t.state = RestRunning
	t.saveLocked(now)
	return nil
}

// Reset stops the countdown and restores the full duration.
func (t *RestTimer) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return ErrDetached
	}
	t.stopLocked()
	t.saveLocked(t.clock.Now())
	return nil
}

// SetDuration changes the countdown length. Only allowed while stopped.
func (t *RestTimer) SetDuration(seconds int64) (bool, error) {
	if seconds <= 0 {
		return false, ErrInvalidDuration
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return false, ErrDetached
	}
	if t.state != RestStopped {
		return false, nil
	}
	t.duration = seconds
	t.saveLocked(t.clock.Now())
	return true, nil
}

// ApplyPreset sets the duration to one of the configured presets.
func (t *RestTimer) ApplyPreset(seconds int64) (bool, error) {
	if !slices.Contains(t.presets, seconds) {
		return false, ErrUnknownPreset
	}
	return t.SetDuration(seconds)
}

// Sample advances the countdown. When it reaches zero the timer stops and a
// rest_complete notice is emitted, exactly once per countdown.
func (t *RestTimer) Sample() RestStatus {
	t.mu.Lock()
	st, finished := t.sampleLocked(t.clock.Now())
	t.mu.Unlock()

	if finished {
		metrics.RestCompletions.Inc()
		t.notify.Notify(Notice{
			Kind:    NoticeRestComplete,
			Scope:   t.scope.Key.String(),
			Message: "Rest is over",
			At:      t.clock.Now(),
		})
	}
	return st
}

// Status is Sample under another name; reading the countdown may complete it.
func (t *RestTimer) Status() RestStatus {
	return t.Sample()
}

func (t *RestTimer) sampleLocked(now time.Time) (RestStatus, bool) {
	finished := false
	remaining := t.duration
	switch t.state {
	case RestRunning:
		remaining = t.duration - wholeSeconds(now.Sub(t.anchor))
		if remaining <= 0 && !t.detached {
			t.stopLocked()
			t.saveLocked(now)
			remaining = t.duration
			finished = true
		} else if remaining < 0 {
			remaining = 0
		}
	case RestPaused:
		remaining = t.duration - t.consumed
	}

	return RestStatus{
		State:            t.state,
		RemainingSeconds: remaining,
		DurationSeconds:  t.duration,
		Presets:          slices.Clone(t.presets),
	}, finished
}

func (t *RestTimer) stopLocked() {
	t.state = RestStopped
	t.consumed = 0
	t.anchor = time.Time{}
}

func (t *RestTimer) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = true
}

func (t *RestTimer) saveLocked(now time.Time) {
	snap := RestTimerSnapshot{
		ScopeKey:        t.scope.Key.String(),
		IsRunning:       t.state == RestRunning,
		IsPaused:        t.state == RestPaused,
		ElapsedSeconds:  t.consumed,
		DurationSeconds: t.duration,
		SavedAt:         now.UnixMilli(),
	}
	if t.state == RestRunning {
		snap.StartTimestamp = millis(t.anchor)
	}
	t.store.SaveRest(snap)
}
