package api

import (
	"errors"
	"net/http"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/storage"
	"alcyxob/workout-timer/internal/timer"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramLogHandler exposes workout logs and their timer checkpoint.
type ProgramLogHandler struct {
	logService service.ProgramLogService
}

func NewProgramLogHandler(logService service.ProgramLogService) *ProgramLogHandler {
	return &ProgramLogHandler{logService: logService}
}

// --- DTOs ---

type CreateWorkoutLogRequest struct {
	Date  string `json:"date" binding:"required,datetime=2006-01-02"`
	DayID string `json:"dayId" binding:"omitempty,len=24,hexadecimal"`
	Title string `json:"title"`
}

type SaveCheckpointRequest struct {
	TimerSeconds *int64 `json:"timerSeconds" binding:"required,gte=0"`
}

type WorkoutLogResponse struct {
	ID           string     `json:"id"`
	ProgramID    string     `json:"programId"`
	DayID        string     `json:"dayId,omitempty"`
	Date         string     `json:"date"`
	Title        string     `json:"title"`
	TimerSeconds int64      `json:"timerSeconds"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	HasArchive   bool       `json:"hasArchive"`
}

func MapWorkoutLogToResponse(l *domain.WorkoutLog) WorkoutLogResponse {
	resp := WorkoutLogResponse{
		ID:           l.ID.Hex(),
		ProgramID:    l.ProgramID.Hex(),
		Date:         l.Date,
		Title:        l.Title,
		TimerSeconds: l.TimerSeconds,
		Completed:    l.Completed,
		CompletedAt:  l.CompletedAt,
		HasArchive:   l.ArchiveKey != "",
	}
	if l.DayID != primitive.NilObjectID {
		resp.DayID = l.DayID.Hex()
	}
	return resp
}

// --- Handler Methods ---

// CreateWorkoutLog godoc
// @Summary Create (or fetch) the workout log of a program day
// @Tags Workout Logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param log body CreateWorkoutLogRequest true "Day to log"
// @Success 200 {object} WorkoutLogResponse
// @Router /programs/{programId}/logs [post]
func (h *ProgramLogHandler) CreateWorkoutLog(c *gin.Context) {
	var req CreateWorkoutLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, ok := objectIDParam(c, "programId")
	if !ok {
		return
	}
	dayID := primitive.NilObjectID
	if req.DayID != "" {
		dayID, _ = primitive.ObjectIDFromHex(req.DayID)
	}

	log, err := h.logService.CreateSessionLog(c.Request.Context(), userID, programID, dayID, req.Date, req.Title)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutLogToResponse(log))
}

func (h *ProgramLogHandler) FindWorkoutLog(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, ok := objectIDParam(c, "programId")
	if !ok {
		return
	}
	date := c.Query("date")
	if _, err := time.Parse(timer.DateLayout, date); err != nil {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'date' must be YYYY-MM-DD.")
		return
	}

	log, err := h.logService.FindSessionLog(c.Request.Context(), userID, programID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutLogToResponse(log))
}

func (h *ProgramLogHandler) GetCheckpoint(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	logID, ok := objectIDParam(c, "logId")
	if !ok {
		return
	}
	cp, err := h.logService.GetCheckpoint(c.Request.Context(), userID, logID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

// SaveCheckpoint godoc
// @Summary Store the elapsed seconds of a workout
// @Description Idempotent; the last write wins.
// @Tags Workout Logs
// @Accept json
// @Security BearerAuth
// @Param checkpoint body SaveCheckpointRequest true "Elapsed seconds"
// @Success 204
// @Failure 409 {object} gin.H "Workout already completed"
// @Router /logs/{logId}/checkpoint [put]
func (h *ProgramLogHandler) SaveCheckpoint(c *gin.Context) {
	var req SaveCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	logID, ok := objectIDParam(c, "logId")
	if !ok {
		return
	}
	if err := h.logService.SaveCheckpoint(c.Request.Context(), userID, logID, *req.TimerSeconds); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProgramLogHandler) CompleteWorkoutLog(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	logID, ok := objectIDParam(c, "logId")
	if !ok {
		return
	}
	log, err := h.logService.MarkComplete(c.Request.Context(), userID, logID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutLogToResponse(log))
}

func (h *ProgramLogHandler) GetArchiveURL(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	logID, ok := objectIDParam(c, "logId")
	if !ok {
		return
	}
	url, err := h.logService.ArchiveURL(c.Request.Context(), userID, logID)
	if errors.Is(err, storage.ErrStorageDisabled) {
		abortWithError(c, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(storage.DefaultPresignedURLExpiry.Seconds())})
}
