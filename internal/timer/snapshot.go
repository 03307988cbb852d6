package timer

import "time"

// TimerSnapshot is the persisted state of a SessionTimer.
//
// While IsRunning, StartTimestamp is the anchor (now - accumulated seconds at
// the moment of starting) and elapsed time is always now - StartTimestamp.
// ElapsedSeconds is authoritative only while paused.
type TimerSnapshot struct {
	ScopeKey       string `json:"scopeKey"`
	IsRunning      bool   `json:"isRunning"`
	StartTimestamp *int64 `json:"startTimestamp"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	WorkoutLogID   string `json:"workoutLogId,omitempty"`
	SavedAt        int64  `json:"savedAt"`
}

func (s TimerSnapshot) valid(key ScopeKey) bool {
	if s.ScopeKey != key.String() || s.ElapsedSeconds < 0 {
		return false
	}
	return !s.IsRunning || s.StartTimestamp != nil
}

// RestTimerSnapshot is the persisted state of a RestTimer. ElapsedSeconds is the
// part of the countdown already consumed when paused, which may be zero.
type RestTimerSnapshot struct {
	ScopeKey        string `json:"scopeKey"`
	IsRunning       bool   `json:"isRunning"`
	IsPaused        bool   `json:"isPaused,omitempty"`
	StartTimestamp  *int64 `json:"startTimestamp"`
	ElapsedSeconds  int64  `json:"elapsedSeconds"`
	DurationSeconds int64  `json:"durationSeconds"`
	SavedAt         int64  `json:"savedAt"`
}

func (s RestTimerSnapshot) valid(key ScopeKey) bool {
	if s.ScopeKey != key.String() || s.DurationSeconds <= 0 || s.ElapsedSeconds < 0 {
		return false
	}
	if s.IsRunning && s.IsPaused {
		return false
	}
	return !s.IsRunning || s.StartTimestamp != nil
}

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

// wholeSeconds truncates d to whole seconds, never below zero.
func wholeSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
