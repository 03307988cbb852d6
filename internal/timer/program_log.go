package timer

import "context"

// SessionLog is the backend workout-log record a session timer persists into.
type SessionLog struct {
	ID           string
	TimerSeconds int64
	Completed    bool
}

// Checkpoint is the server-held elapsed time for a workout log.
type Checkpoint struct {
	WorkoutLogID string `json:"workoutLogId"`
	TimerSeconds int64  `json:"timerSeconds"`
}

// ProgramLog is the program-log backend as seen by the timers.
// SaveCheckpoint must be idempotent for repeated saves of the same value.
type ProgramLog interface {
	CreateSessionLog(ctx context.Context, programID, dayID, date, title string) (SessionLog, error)
	// FindSessionLog returns ErrSessionLogNotFound when no log exists for the day.
	FindSessionLog(ctx context.Context, programID, date string) (SessionLog, error)
	GetCheckpoint(ctx context.Context, logID string) (Checkpoint, error)
	SaveCheckpoint(ctx context.Context, logID string, seconds int64) error
	MarkComplete(ctx context.Context, logID string) error
}
