package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduleMode selects how a program's days are laid out on the calendar.
type ScheduleMode string

const (
	// ScheduleWeekly maps day numbers to ISO weekdays, 1 (Mon) - 7 (Sun).
	ScheduleWeekly ScheduleMode = "weekly"
	// ScheduleRotation repeats the days as a cycle anchored at StartingDate.
	ScheduleRotation ScheduleMode = "rotation"
)

func (m ScheduleMode) Valid() bool {
	return m == ScheduleWeekly || m == ScheduleRotation
}

// Program is a user's recurring workout program.
type Program struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Name   string             `bson:"name" json:"name"`
	Mode   ScheduleMode       `bson:"mode" json:"mode"`
	// StartingDate anchors cycle day 1 of a rotation program. Unused for weekly programs.
	StartingDate *time.Time   `bson:"startingDate,omitempty" json:"startingDate,omitempty"`
	Days         []ProgramDay `bson:"days" json:"days"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// ProgramDay is one day of a program: a weekday for weekly programs or a
// cycle position for rotation programs.
type ProgramDay struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	DayNumber  int                `bson:"dayNumber" json:"dayNumber"`
	Title      string             `bson:"title" json:"title"`
	HasWorkout bool               `bson:"hasWorkout" json:"hasWorkout"` // false for rest days
}

// Day returns the program day with the given id.
func (p *Program) Day(id primitive.ObjectID) (ProgramDay, bool) {
	for _, d := range p.Days {
		if d.ID == id {
			return d, true
		}
	}
	return ProgramDay{}, false
}
