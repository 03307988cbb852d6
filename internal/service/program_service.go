package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/repository"
	"alcyxob/workout-timer/internal/schedule"
	"alcyxob/workout-timer/internal/timer"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrProgramNotFound     = errors.New("program not found")
	ErrValidationFailed    = errors.New("validation failed")
	ErrDuplicateDayNumber  = errors.New("duplicate day number")
	ErrMissingStartingDate = errors.New("rotation program requires a starting date")
	ErrInvalidRange        = errors.New("invalid date range")
)

// MaxCalendarDays bounds a single calendar query.
const MaxCalendarDays = 366

// ProgramDayInput describes one day of a new program.
type ProgramDayInput struct {
	DayNumber  int    `json:"dayNumber"`
	Title      string `json:"title"`
	HasWorkout bool   `json:"hasWorkout"`
}

type CreateProgramInput struct {
	Name         string              `json:"name"`
	Mode         domain.ScheduleMode `json:"mode"`
	StartingDate *time.Time          `json:"startingDate,omitempty"`
	Days         []ProgramDayInput   `json:"days"`
}

// CalendarMarker decorates one calendar date of a program.
type CalendarMarker struct {
	Date         string `json:"date"`
	CycleDay     int    `json:"cycleDay,omitempty"`
	Scheduled    bool   `json:"scheduled"`
	HasWorkout   bool   `json:"hasWorkout"`
	Title        string `json:"title,omitempty"`
	WorkoutLogID string `json:"workoutLogId,omitempty"`
	TimerSeconds int64  `json:"timerSeconds,omitempty"`
	Completed    bool   `json:"completed"`
}

// --- Service Interface ---
type ProgramService interface {
	CreateProgram(ctx context.Context, userID primitive.ObjectID, input CreateProgramInput) (*domain.Program, error)
	GetProgram(ctx context.Context, userID, programID primitive.ObjectID) (*domain.Program, error)
	ListPrograms(ctx context.Context, userID primitive.ObjectID) ([]domain.Program, error)
	// ResolveDay returns the program and the program day scheduled on date, if any.
	ResolveDay(ctx context.Context, userID, programID primitive.ObjectID, date time.Time) (*domain.Program, *domain.ProgramDay, error)
	Calendar(ctx context.Context, userID, programID primitive.ObjectID, from, to time.Time) ([]CalendarMarker, error)
}

// --- Service Implementation ---

type programService struct {
	programRepo repository.ProgramRepository
	logRepo     repository.WorkoutLogRepository
}

func NewProgramService(programRepo repository.ProgramRepository, logRepo repository.WorkoutLogRepository) ProgramService {
	return &programService{
		programRepo: programRepo,
		logRepo:     logRepo,
	}
}

func (s *programService) CreateProgram(ctx context.Context, userID primitive.ObjectID, input CreateProgramInput) (*domain.Program, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required to create a program")
	}
	if err := validateProgram(input); err != nil {
		return nil, err
	}

	program := &domain.Program{
		UserID: userID,
		Name:   strings.TrimSpace(input.Name),
		Mode:   input.Mode,
		Days:   make([]domain.ProgramDay, 0, len(input.Days)),
	}
	if input.Mode == domain.ScheduleRotation {
		start := civilDate(*input.StartingDate)
		program.StartingDate = &start
	}
	for _, d := range input.Days {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			title = fmt.Sprintf("Day %d", d.DayNumber)
		}
		program.Days = append(program.Days, domain.ProgramDay{
			ID:         primitive.NewObjectID(),
			DayNumber:  d.DayNumber,
			Title:      title,
			HasWorkout: d.HasWorkout,
		})
	}

	id, err := s.programRepo.Create(ctx, program)
	if err != nil {
		return nil, err
	}
	program.ID = id
	return program, nil
}

func validateProgram(input CreateProgramInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if !input.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrValidationFailed, input.Mode)
	}
	if input.Mode == domain.ScheduleRotation && input.StartingDate == nil {
		return ErrMissingStartingDate
	}

	seen := make(map[int]bool, len(input.Days))
	for _, d := range input.Days {
		if d.DayNumber < 1 {
			return fmt.Errorf("%w: day number %d must be at least 1", ErrValidationFailed, d.DayNumber)
		}
		if input.Mode == domain.ScheduleWeekly && d.DayNumber > 7 {
			return fmt.Errorf("%w: weekday %d out of range 1-7", ErrValidationFailed, d.DayNumber)
		}
		if seen[d.DayNumber] {
			return fmt.Errorf("%w: %d", ErrDuplicateDayNumber, d.DayNumber)
		}
		seen[d.DayNumber] = true
	}
	return nil
}

func (s *programService) GetProgram(ctx context.Context, userID, programID primitive.ObjectID) (*domain.Program, error) {
	program, err := s.programRepo.GetByID(ctx, userID, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, err
	}
	return program, nil
}

func (s *programService) ListPrograms(ctx context.Context, userID primitive.ObjectID) ([]domain.Program, error) {
	return s.programRepo.GetByUserID(ctx, userID)
}

func (s *programService) ResolveDay(ctx context.Context, userID, programID primitive.ObjectID, date time.Time) (*domain.Program, *domain.ProgramDay, error) {
	program, err := s.GetProgram(ctx, userID, programID)
	if err != nil {
		return nil, nil, err
	}
	day, ok := programDayOn(program, schedule.ForProgram(*program), date)
	if !ok {
		return program, nil, nil
	}
	return program, &day, nil
}

// Calendar returns one marker per date in [from, to].
func (s *programService) Calendar(ctx context.Context, userID, programID primitive.ObjectID, from, to time.Time) ([]CalendarMarker, error) {
	from, to = civilDate(from), civilDate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: 'to' is before 'from'", ErrInvalidRange)
	}
	if int(to.Sub(from)/(24*time.Hour))+1 > MaxCalendarDays {
		return nil, fmt.Errorf("%w: at most %d days", ErrInvalidRange, MaxCalendarDays)
	}

	program, err := s.GetProgram(ctx, userID, programID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListByProgramAndRange(ctx, userID, programID, from.Format(timer.DateLayout), to.Format(timer.DateLayout))
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]domain.WorkoutLog, len(logs))
	for _, l := range logs {
		byDate[l.Date] = l
	}

	sched := schedule.ForProgram(*program)
	markers := make([]CalendarMarker, 0, int(to.Sub(from)/(24*time.Hour))+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		m := CalendarMarker{Date: d.Format(timer.DateLayout)}
		if cd, ok := sched.CycleDayOf(d); ok {
			m.CycleDay = cd
		}
		if day, ok := programDayOn(program, sched, d); ok {
			m.Scheduled = true
			m.HasWorkout = day.HasWorkout
			m.Title = day.Title
		}
		if l, ok := byDate[m.Date]; ok {
			m.WorkoutLogID = l.ID.Hex()
			m.TimerSeconds = l.TimerSeconds
			m.Completed = l.Completed
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func programDayOn(program *domain.Program, sched schedule.Scheduler, date time.Time) (domain.ProgramDay, bool) {
	cd, ok := sched.DayOn(date)
	if !ok {
		return domain.ProgramDay{}, false
	}
	for _, d := range program.Days {
		if d.DayNumber == cd.DayNumber {
			return d, true
		}
	}
	return domain.ProgramDay{}, false
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
