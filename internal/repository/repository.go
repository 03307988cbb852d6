package repository

import (
	"context"

	"alcyxob/workout-timer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrConflict     = RepositoryError("already exists")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ProgramRepository defines the interface for interacting with program data.
type ProgramRepository interface {
	Create(ctx context.Context, program *domain.Program) (primitive.ObjectID, error)
	// GetByID only returns programs owned by userID.
	GetByID(ctx context.Context, userID, id primitive.ObjectID) (*domain.Program, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Program, error)
}

// WorkoutLogRepository defines the interface for interacting with workout logs.
// There is at most one log per user, program and date.
type WorkoutLogRepository interface {
	// Create returns ErrConflict when a log already exists for the day.
	Create(ctx context.Context, log *domain.WorkoutLog) (primitive.ObjectID, error)
	GetByID(ctx context.Context, userID, id primitive.ObjectID) (*domain.WorkoutLog, error)
	FindByProgramAndDate(ctx context.Context, userID, programID primitive.ObjectID, date string) (*domain.WorkoutLog, error)
	// ListByProgramAndRange returns logs with from <= date <= to, ordered by date.
	ListByProgramAndRange(ctx context.Context, userID, programID primitive.ObjectID, from, to string) ([]domain.WorkoutLog, error)
	UpdateTimerSeconds(ctx context.Context, userID, id primitive.ObjectID, seconds int64) error
	MarkComplete(ctx context.Context, userID, id primitive.ObjectID) (*domain.WorkoutLog, error)
	SetArchiveKey(ctx context.Context, userID, id primitive.ObjectID, key string) error
}
