package timer

import "errors"

var (
	ErrNoScope            = errors.New("timer: no scope selected")
	ErrNoSessionLog       = errors.New("timer: could not create a workout log for this session")
	ErrSessionCompleted   = errors.New("timer: workout already completed")
	ErrNotStarted         = errors.New("timer: session has not been started")
	ErrCheckpointNotSaved = errors.New("timer: checkpoint not saved")
	ErrInvalidDuration    = errors.New("timer: duration must be positive")
	ErrUnknownPreset      = errors.New("timer: unknown rest preset")
	ErrDetached           = errors.New("timer: timer no longer owns its scope")
	ErrSessionLogNotFound = errors.New("timer: session log not found")
)
