package main

import (
	"bytes"
	"testing"
	"time"

	"alcyxob/workout-timer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarInput(t *testing.T) {
	input, err := calendarInput(domain.ScheduleWeekly, "", "Legs, -,Push,rest")
	require.NoError(t, err)
	require.Len(t, input.Days, 3)
	assert.Equal(t, 1, input.Days[0].DayNumber)
	assert.Equal(t, 3, input.Days[1].DayNumber)
	assert.Equal(t, "Push", input.Days[1].Title)
	assert.False(t, input.Days[2].HasWorkout)

	_, err = calendarInput(domain.ScheduleRotation, "10/01/2024", "A")
	assert.Error(t, err)
}

func TestCalendarRange_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC)
	from, to, err := calendarRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", from.Format("2006-01-02"))
	assert.Equal(t, "2024-03-18", to.Format("2006-01-02"))
}

func TestCalendarCommand_Rotation(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"calendar", "--start", "2024-01-10", "--days", "Push,Pull,rest", "--from", "2024-01-09", "--to", "2024-01-11"})
	require.NoError(t, rootCmd.Execute())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[1]), "2024-01-09")
	// trailing rest day of the cycle, not in the program
	assert.Contains(t, string(lines[1]), "4")
	assert.NotContains(t, string(lines[1]), "rest")
	assert.Contains(t, string(lines[2]), "Push")
	assert.Contains(t, string(lines[3]), "Pull")
}
