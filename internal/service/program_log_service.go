package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/repository"
	"alcyxob/workout-timer/internal/storage"
	"alcyxob/workout-timer/internal/timer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrWorkoutLogNotFound  = errors.New("workout log not found")
	ErrWorkoutLogCompleted = errors.New("workout log already completed")
	ErrInvalidCheckpoint   = errors.New("checkpoint seconds must not be negative")
	ErrInvalidDate         = errors.New("date must be formatted YYYY-MM-DD")
	ErrArchiveNotFound     = errors.New("workout log has no archive")
)

const archiveContentType = "application/json"

// --- Service Interface ---

// ProgramLogService owns the workout logs of programs and the server-side
// timer checkpoint stored on them.
type ProgramLogService interface {
	// CreateSessionLog returns the existing log for the day if there is one.
	CreateSessionLog(ctx context.Context, userID, programID, dayID primitive.ObjectID, date, title string) (*domain.WorkoutLog, error)
	FindSessionLog(ctx context.Context, userID, programID primitive.ObjectID, date string) (*domain.WorkoutLog, error)
	GetCheckpoint(ctx context.Context, userID, logID primitive.ObjectID) (timer.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, userID, logID primitive.ObjectID, seconds int64) error
	MarkComplete(ctx context.Context, userID, logID primitive.ObjectID) (*domain.WorkoutLog, error)
	ArchiveURL(ctx context.Context, userID, logID primitive.ObjectID) (string, error)
	// ForUser adapts the service to the timer's view of the program log.
	ForUser(userID primitive.ObjectID) timer.ProgramLog
}

// --- Service Implementation ---

type programLogService struct {
	programs ProgramService
	logRepo  repository.WorkoutLogRepository
	// nil disables completion archives
	archive storage.FileStorage
	logger  zerolog.Logger
}

func NewProgramLogService(
	programs ProgramService,
	logRepo repository.WorkoutLogRepository,
	archive storage.FileStorage,
	logger zerolog.Logger,
) ProgramLogService {
	return &programLogService{
		programs: programs,
		logRepo:  logRepo,
		archive:  archive,
		logger:   logger.With().Str("component", "program-log").Logger(),
	}
}

func (s *programLogService) CreateSessionLog(ctx context.Context, userID, programID, dayID primitive.ObjectID, date, title string) (*domain.WorkoutLog, error) {
	day, err := time.Parse(timer.DateLayout, date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	existing, err := s.FindSessionLog(ctx, userID, programID, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrWorkoutLogNotFound) {
		return nil, err
	}

	program, scheduled, err := s.programs.ResolveDay(ctx, userID, programID, day)
	if err != nil {
		return nil, err
	}

	log := &domain.WorkoutLog{
		UserID:    userID,
		ProgramID: programID,
		Date:      date,
		Title:     title,
	}
	switch {
	case dayID != primitive.NilObjectID:
		pd, ok := program.Day(dayID)
		if !ok {
			return nil, fmt.Errorf("%w: day %s is not part of the program", ErrValidationFailed, dayID.Hex())
		}
		log.DayID = pd.ID
		if log.Title == "" {
			log.Title = pd.Title
		}
	case scheduled != nil:
		log.DayID = scheduled.ID
		if log.Title == "" {
			log.Title = scheduled.Title
		}
	}
	if log.Title == "" {
		log.Title = program.Name
	}

	id, err := s.logRepo.Create(ctx, log)
	if errors.Is(err, repository.ErrConflict) {
		// created concurrently for the same day
		return s.FindSessionLog(ctx, userID, programID, date)
	}
	if err != nil {
		return nil, err
	}
	log.ID = id

	s.logger.Info().Str("workout_log_id", id.Hex()).Str("program_id", programID.Hex()).Str("date", date).Msg("Workout log created")
	return log, nil
}

func (s *programLogService) FindSessionLog(ctx context.Context, userID, programID primitive.ObjectID, date string) (*domain.WorkoutLog, error) {
	log, err := s.logRepo.FindByProgramAndDate(ctx, userID, programID, date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, err
	}
	return log, nil
}

func (s *programLogService) getLog(ctx context.Context, userID, logID primitive.ObjectID) (*domain.WorkoutLog, error) {
	log, err := s.logRepo.GetByID(ctx, userID, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, err
	}
	return log, nil
}

func (s *programLogService) GetCheckpoint(ctx context.Context, userID, logID primitive.ObjectID) (timer.Checkpoint, error) {
	log, err := s.getLog(ctx, userID, logID)
	if err != nil {
		return timer.Checkpoint{}, err
	}
	return timer.Checkpoint{WorkoutLogID: log.ID.Hex(), TimerSeconds: log.TimerSeconds}, nil
}

// SaveCheckpoint overwrites the stored seconds. Repeating a save is harmless.
func (s *programLogService) SaveCheckpoint(ctx context.Context, userID, logID primitive.ObjectID, seconds int64) error {
	if seconds < 0 {
		return ErrInvalidCheckpoint
	}
	log, err := s.getLog(ctx, userID, logID)
	if err != nil {
		return err
	}
	if log.Completed {
		return ErrWorkoutLogCompleted
	}
	if log.TimerSeconds == seconds {
		return nil
	}

	err = s.logRepo.UpdateTimerSeconds(ctx, userID, logID, seconds)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrWorkoutLogNotFound
	}
	return err
}

// MarkComplete completes the log and archives a summary of it. The archive
// is best effort and never fails the completion.
func (s *programLogService) MarkComplete(ctx context.Context, userID, logID primitive.ObjectID) (*domain.WorkoutLog, error) {
	log, err := s.logRepo.MarkComplete(ctx, userID, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, err
	}

	if s.archive != nil && log.ArchiveKey == "" {
		if key, err := s.archiveLog(ctx, log); err != nil {
			s.logger.Warn().Err(err).Str("workout_log_id", log.ID.Hex()).Msg("Failed to archive completed workout")
		} else {
			log.ArchiveKey = key
		}
	}
	return log, nil
}

type archiveSummary struct {
	WorkoutLogID string     `json:"workoutLogId"`
	ProgramID    string     `json:"programId"`
	DayID        string     `json:"dayId,omitempty"`
	Date         string     `json:"date"`
	Title        string     `json:"title"`
	TimerSeconds int64      `json:"timerSeconds"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func archiveKey(userID, logID primitive.ObjectID) string {
	return fmt.Sprintf("workout-logs/%s/%s/%s.json", userID.Hex(), logID.Hex(), uuid.NewString())
}

func (s *programLogService) archiveLog(ctx context.Context, log *domain.WorkoutLog) (string, error) {
	summary := archiveSummary{
		WorkoutLogID: log.ID.Hex(),
		ProgramID:    log.ProgramID.Hex(),
		Date:         log.Date,
		Title:        log.Title,
		TimerSeconds: log.TimerSeconds,
		CompletedAt:  log.CompletedAt,
	}
	if log.DayID != primitive.NilObjectID {
		summary.DayID = log.DayID.Hex()
	}
	body, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}

	key := archiveKey(log.UserID, log.ID)
	if err := s.archive.PutObject(ctx, key, archiveContentType, body); err != nil {
		return "", fmt.Errorf("upload archive: %w", err)
	}
	if err := s.logRepo.SetArchiveKey(ctx, log.UserID, log.ID, key); err != nil {
		if delErr := s.archive.DeleteObject(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned archive")
		}
		return "", fmt.Errorf("record archive key: %w", err)
	}
	return key, nil
}

func (s *programLogService) ArchiveURL(ctx context.Context, userID, logID primitive.ObjectID) (string, error) {
	if s.archive == nil {
		return "", storage.ErrStorageDisabled
	}
	log, err := s.getLog(ctx, userID, logID)
	if err != nil {
		return "", err
	}
	if log.ArchiveKey == "" {
		return "", ErrArchiveNotFound
	}
	return s.archive.GeneratePresignedDownloadURL(ctx, log.ArchiveKey, storage.DefaultPresignedURLExpiry)
}

func (s *programLogService) ForUser(userID primitive.ObjectID) timer.ProgramLog {
	return &userProgramLog{svc: s, userID: userID}
}

// userProgramLog is the timer.ProgramLog of one user. Ids cross the timer
// boundary as hex strings.
type userProgramLog struct {
	svc    *programLogService
	userID primitive.ObjectID
}

func (u *userProgramLog) CreateSessionLog(ctx context.Context, programID, dayID, date, title string) (timer.SessionLog, error) {
	pid, err := primitive.ObjectIDFromHex(programID)
	if err != nil {
		return timer.SessionLog{}, fmt.Errorf("invalid program id: %w", err)
	}
	did := primitive.NilObjectID
	if dayID != "" {
		if did, err = primitive.ObjectIDFromHex(dayID); err != nil {
			return timer.SessionLog{}, fmt.Errorf("invalid day id: %w", err)
		}
	}
	log, err := u.svc.CreateSessionLog(ctx, u.userID, pid, did, date, title)
	if err != nil {
		return timer.SessionLog{}, err
	}
	return toSessionLog(log), nil
}

func (u *userProgramLog) FindSessionLog(ctx context.Context, programID, date string) (timer.SessionLog, error) {
	pid, err := primitive.ObjectIDFromHex(programID)
	if err != nil {
		return timer.SessionLog{}, fmt.Errorf("invalid program id: %w", err)
	}
	log, err := u.svc.FindSessionLog(ctx, u.userID, pid, date)
	if errors.Is(err, ErrWorkoutLogNotFound) {
		return timer.SessionLog{}, timer.ErrSessionLogNotFound
	}
	if err != nil {
		return timer.SessionLog{}, err
	}
	return toSessionLog(log), nil
}

func (u *userProgramLog) GetCheckpoint(ctx context.Context, logID string) (timer.Checkpoint, error) {
	id, err := primitive.ObjectIDFromHex(logID)
	if err != nil {
		return timer.Checkpoint{}, fmt.Errorf("invalid workout log id: %w", err)
	}
	return u.svc.GetCheckpoint(ctx, u.userID, id)
}

func (u *userProgramLog) SaveCheckpoint(ctx context.Context, logID string, seconds int64) error {
	id, err := primitive.ObjectIDFromHex(logID)
	if err != nil {
		return fmt.Errorf("invalid workout log id: %w", err)
	}
	return u.svc.SaveCheckpoint(ctx, u.userID, id, seconds)
}

func (u *userProgramLog) MarkComplete(ctx context.Context, logID string) error {
	id, err := primitive.ObjectIDFromHex(logID)
	if err != nil {
		return fmt.Errorf("invalid workout log id: %w", err)
	}
	_, err = u.svc.MarkComplete(ctx, u.userID, id)
	return err
}

func toSessionLog(log *domain.WorkoutLog) timer.SessionLog {
	return timer.SessionLog{
		ID:           log.ID.Hex(),
		TimerSeconds: log.TimerSeconds,
		Completed:    log.Completed,
	}
}
