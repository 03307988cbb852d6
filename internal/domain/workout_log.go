package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutLog records one workout day of a program. TimerSeconds is the
// server-side checkpoint of the session timer.
type WorkoutLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	ProgramID    primitive.ObjectID `bson:"programId" json:"programId"`
	DayID        primitive.ObjectID `bson:"dayId,omitempty" json:"dayId,omitempty"`
	Date         string             `bson:"date" json:"date"` // YYYY-MM-DD
	Title        string             `bson:"title" json:"title"`
	TimerSeconds int64              `bson:"timerSeconds" json:"timerSeconds"`
	Completed    bool               `bson:"completed" json:"completed"`
	CompletedAt  *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ArchiveKey   string             `bson:"archiveKey,omitempty" json:"archiveKey,omitempty"` // S3 object key of the completion summary
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
