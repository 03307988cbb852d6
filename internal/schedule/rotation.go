package schedule

import "time"

const day = 24 * time.Hour

// Rotation repeats CycleDays starting at StartingDate (cycle day 1). The
// cycle length is the highest day number plus one trailing rest day.
// Day numbers below 1 are ignored.
type Rotation struct {
	StartingDate time.Time
	CycleDays    []CycleDay
}

// CycleLength returns N, or 0 when the rotation has no valid days.
func (r Rotation) CycleLength() int {
	maxDay := 0
	for _, d := range r.CycleDays {
		if d.DayNumber > maxDay {
			maxDay = d.DayNumber
		}
	}
	if maxDay == 0 {
		return 0
	}
	return maxDay + 1
}

// CycleDayOf returns the 1-based position in the cycle of date.
// Dates before StartingDate are reflected backward so that walking N days
// forward from any date lands on the same cycle day.
func (r Rotation) CycleDayOf(date time.Time) (int, bool) {
	n := r.CycleLength()
	if n == 0 || r.StartingDate.IsZero() {
		return 0, false
	}

	diff := int(civil(date).Sub(civil(r.StartingDate)) / day)
	if diff >= 0 {
		return diff%n + 1, true
	}

	rem := -diff % n
	if rem == 0 {
		return 1, true
	}
	return n + 1 - rem, true
}

func (r Rotation) IsScheduled(date time.Time) bool {
	_, ok := r.DayOn(date)
	return ok
}

func (r Rotation) DayOn(date time.Time) (CycleDay, bool) {
	cd, ok := r.CycleDayOf(date)
	if !ok {
		return CycleDay{}, false
	}
	return find(r.CycleDays, cd)
}
