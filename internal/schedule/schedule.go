// Package schedule decides which program day falls on a calendar date.
//
// Weekly programs map the ISO weekday directly to a day number. Rotation
// programs repeat their days as a cycle anchored at a starting date. The two
// are separate strategies because only the rotation depends on an anchor.
package schedule

import (
	"time"

	"alcyxob/workout-timer/internal/domain"
)

// CycleDay is one entry of a program schedule.
type CycleDay struct {
	DayNumber  int
	HasWorkout bool
}

// Scheduler answers calendar questions for one program.
type Scheduler interface {
	// CycleDayOf returns the day number that falls on date. ok is false when
	// the program has no usable days.
	CycleDayOf(date time.Time) (day int, ok bool)
	// IsScheduled reports whether a program day is defined for date.
	IsScheduled(date time.Time) bool
	// DayOn returns the program day defined for date.
	DayOn(date time.Time) (CycleDay, bool)
}

// ForProgram builds the strategy matching the program's mode.
func ForProgram(p domain.Program) Scheduler {
	days := make([]CycleDay, 0, len(p.Days))
	for _, d := range p.Days {
		days = append(days, CycleDay{DayNumber: d.DayNumber, HasWorkout: d.HasWorkout})
	}

	if p.Mode == domain.ScheduleRotation && p.StartingDate != nil {
		return Rotation{StartingDate: *p.StartingDate, CycleDays: days}
	}
	if p.Mode == domain.ScheduleRotation {
		// no anchor, nothing can be placed
		return Rotation{}
	}
	return Weekly{Days: days}
}

// civil returns the calendar day of t as a UTC midnight, so that day
// differences are not skewed by time of day, zone offset or DST.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func find(days []CycleDay, dayNumber int) (CycleDay, bool) {
	for _, d := range days {
		if d.DayNumber == dayNumber {
			return d, true
		}
	}
	return CycleDay{}, false
}
