package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/repository/memory"
	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/timer"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	calendarMode  string
	calendarStart string
	calendarDays  string
	calendarFrom  string
	calendarTo    string
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Print the cycle days of a program without a database",
	Long: `Print one line per date with the program day that falls on it.

--days lists the program days in order, separated by commas. In rotation mode
entry i is cycle day i; in weekly mode the entries are Monday to Sunday. An
entry named "rest" is a day without a workout and "-" leaves the slot empty.`,
	Example: `  workout-timer calendar --start 2024-01-10 --days Push,Pull,rest --from 2024-01-06 --to 2024-01-20
  workout-timer calendar --mode weekly --days Legs,-,Push,-,Pull,-,- --from 2024-01-01 --to 2024-01-14`,
	RunE: runCalendar,
}

func init() {
	calendarCmd.Flags().StringVar(&calendarMode, "mode", string(domain.ScheduleRotation), "Schedule mode: rotation or weekly")
	calendarCmd.Flags().StringVar(&calendarStart, "start", "", "Rotation starting date (YYYY-MM-DD)")
	calendarCmd.Flags().StringVar(&calendarDays, "days", "", "Comma separated day titles (required)")
	calendarCmd.Flags().StringVar(&calendarFrom, "from", "", "First date to print (default today)")
	calendarCmd.Flags().StringVar(&calendarTo, "to", "", "Last date to print (default from + 13 days)")
	_ = calendarCmd.MarkFlagRequired("days")
	rootCmd.AddCommand(calendarCmd)
}

func runCalendar(cmd *cobra.Command, args []string) error {
	input, err := calendarInput(domain.ScheduleMode(calendarMode), calendarStart, calendarDays)
	if err != nil {
		return err
	}
	from, to, err := calendarRange(calendarFrom, calendarTo, time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	programs := service.NewProgramService(memory.NewProgramRepository(), memory.NewWorkoutLogRepository())
	user := primitive.NewObjectID()
	program, err := programs.CreateProgram(ctx, user, input)
	if err != nil {
		return err
	}
	markers, err := programs.Calendar(ctx, user, program.ID, from, to)
	if err != nil {
		return err
	}
	return printCalendar(cmd.OutOrStdout(), markers)
}

func calendarInput(mode domain.ScheduleMode, start, days string) (service.CreateProgramInput, error) {
	input := service.CreateProgramInput{Name: "calendar", Mode: mode}
	if start != "" {
		d, err := time.Parse(timer.DateLayout, start)
		if err != nil {
			return input, fmt.Errorf("invalid --start %q: %w", start, err)
		}
		input.StartingDate = &d
	}
	for i, entry := range strings.Split(days, ",") {
		title := strings.TrimSpace(entry)
		if title == "-" {
			continue
		}
		day := service.ProgramDayInput{DayNumber: i + 1, Title: title, HasWorkout: true}
		if strings.EqualFold(title, "rest") {
			day.HasWorkout = false
		}
		input.Days = append(input.Days, day)
	}
	return input, nil
}

func calendarRange(fromFlag, toFlag string, now time.Time) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if fromFlag != "" {
		d, err := time.Parse(timer.DateLayout, fromFlag)
		if err != nil {
			return from, from, fmt.Errorf("invalid --from %q: %w", fromFlag, err)
		}
		from = d
	}
	to := from.AddDate(0, 0, 13)
	if toFlag != "" {
		d, err := time.Parse(timer.DateLayout, toFlag)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to %q: %w", toFlag, err)
		}
		to = d
	}
	return from, to, nil
}

func printCalendar(w io.Writer, markers []service.CalendarMarker) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tTITLE\tWORKOUT")
	for _, m := range markers {
		day, title, workout := "-", "-", "-"
		if m.CycleDay > 0 {
			day = fmt.Sprint(m.CycleDay)
		}
		if m.Scheduled {
			title = m.Title
			workout = "no"
			if m.HasWorkout {
				workout = "yes"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Date, day, title, workout)
	}
	return tw.Flush()
}
