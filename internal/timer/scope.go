package timer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day-precision format used in scope keys and workout logs.
const DateLayout = "2006-01-02"

// ScopeKey identifies one timer instance: a calendar day within a program.
type ScopeKey struct {
	Date      string
	ProgramID string
}

// NewScopeKey builds a key for the calendar day of date.
func NewScopeKey(date time.Time, programID string) ScopeKey {
	return ScopeKey{Date: date.Format(DateLayout), ProgramID: programID}
}

func (k ScopeKey) String() string {
	return k.Date + "|" + k.ProgramID
}

func (k ScopeKey) IsZero() bool {
	return k.Date == "" && k.ProgramID == ""
}

// Validate checks the date format and that a program is set.
func (k ScopeKey) Validate() error {
	if k.ProgramID == "" {
		return errors.New("scope key: program id is required")
	}
	if _, err := time.Parse(DateLayout, k.Date); err != nil {
		return fmt.Errorf("scope key: invalid date %q", k.Date)
	}
	return nil
}

// ParseScopeKey parses the String form "YYYY-MM-DD|programID".
func ParseScopeKey(s string) (ScopeKey, error) {
	date, programID, ok := strings.Cut(s, "|")
	if !ok {
		return ScopeKey{}, fmt.Errorf("scope key: malformed %q", s)
	}
	k := ScopeKey{Date: date, ProgramID: programID}
	if err := k.Validate(); err != nil {
		return ScopeKey{}, err
	}
	return k, nil
}

// Scope is a ScopeKey plus what the program-log backend needs to create
// the workout log for that day.
type Scope struct {
	Key   ScopeKey
	DayID string
	Title string
}
