package schedule

import "time"

// Weekly maps day numbers 1 (Mon) - 7 (Sun) onto the ISO weekday.
type Weekly struct {
	Days []CycleDay
}

// isoWeekday converts time.Weekday (Sun=0) to Mon=1..Sun=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func (w Weekly) CycleDayOf(date time.Time) (int, bool) {
	if len(w.Days) == 0 {
		return 0, false
	}
	return isoWeekday(date), true
}

func (w Weekly) IsScheduled(date time.Time) bool {
	_, ok := w.DayOn(date)
	return ok
}

func (w Weekly) DayOn(date time.Time) (CycleDay, bool) {
	return find(w.Days, isoWeekday(date))
}
