package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/timer"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimerHandler drives the per-user session and rest timers.
type TimerHandler struct {
	hub            *timer.Hub
	programService service.ProgramService
}

func NewTimerHandler(hub *timer.Hub, programService service.ProgramService) *TimerHandler {
	return &TimerHandler{hub: hub, programService: programService}
}

// --- DTOs ---

type SwitchScopeRequest struct {
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	ProgramID string `json:"programId" binding:"required,len=24,hexadecimal"`
}

type RestSecondsRequest struct {
	Seconds int64 `json:"seconds" binding:"gte=0"`
}

// TimerResponse carries the timer state plus notices raised since the last response.
type TimerResponse struct {
	Timer   timer.Status   `json:"timer"`
	Notices []timer.Notice `json:"notices"`
	Changed *bool          `json:"changed,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (h *TimerHandler) coordinator(c *gin.Context) (*timer.Coordinator, bool) {
	userID, ok := mustUserID(c)
	if !ok {
		return nil, false
	}
	return h.hub.For(userID.Hex()), true
}

// timerErrorStatus maps timer errors onto HTTP status codes. Errors that
// leave a valid local state (like an unsaved checkpoint) still carry the
// timer in the response body.
func timerErrorStatus(err error) int {
	switch {
	case errors.Is(err, timer.ErrCheckpointNotSaved):
		return http.StatusAccepted
	case errors.Is(err, timer.ErrNoScope),
		errors.Is(err, timer.ErrSessionCompleted),
		errors.Is(err, timer.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, timer.ErrInvalidDuration),
		errors.Is(err, timer.ErrUnknownPreset):
		return http.StatusBadRequest
	case errors.Is(err, timer.ErrDetached):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *TimerHandler) respond(c *gin.Context, coord *timer.Coordinator, st timer.Status, changed *bool, err error) {
	resp := TimerResponse{Timer: st, Notices: coord.DrainNotices(), Changed: changed}
	if resp.Notices == nil {
		resp.Notices = []timer.Notice{}
	}
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	code := timerErrorStatus(err)
	resp.Error = err.Error()
	if errors.Is(err, timer.ErrNoScope) || errors.Is(err, timer.ErrDetached) {
		c.AbortWithStatusJSON(code, gin.H{"error": resp.Error})
		return
	}
	c.JSON(code, resp)
}

// SwitchScope godoc
// @Summary Select the day whose timers are shown
// @Description Stops and flushes the timers of the previous day and loads the timers of the given program day.
// @Tags Timer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param scope body SwitchScopeRequest true "Program day"
// @Success 200 {object} TimerResponse
// @Failure 404 {object} gin.H "Program not found"
// @Router /timer/scope [put]
func (h *TimerHandler) SwitchScope(c *gin.Context) {
	var req SwitchScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, _ := primitive.ObjectIDFromHex(req.ProgramID)
	date, _ := time.Parse(timer.DateLayout, req.Date)

	program, day, err := h.programService.ResolveDay(c.Request.Context(), userID, programID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	scope := timer.Scope{Key: timer.NewScopeKey(date, programID.Hex()), Title: program.Name}
	if day != nil {
		scope.DayID = day.ID.Hex()
		scope.Title = day.Title
	}

	coord := h.hub.For(userID.Hex())
	st, err := coord.SwitchScope(c.Request.Context(), scope)
	h.respond(c, coord, st, nil, err)
}

// GetTimer returns the current timers. Reading the timer also reports a rest
// countdown that finished in the meantime.
func (h *TimerHandler) GetTimer(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.State()
	h.respond(c, coord, st, nil, err)
}

// ResumeFromBackground is called by clients returning from suspension.
func (h *TimerHandler) ResumeFromBackground(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.ResumeFromBackground(c.Request.Context())
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) StartSession(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.StartSession(c.Request.Context())
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) PauseSession(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.PauseSession(c.Request.Context())
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) CompleteSession(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.CompleteSession(c.Request.Context())
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) ResetSession(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.ResetSession(c.Request.Context())
	h.respond(c, coord, st, nil, err)
}

// StartRest starts a countdown. An empty body or zero seconds uses the configured duration.
func (h *TimerHandler) StartRest(c *gin.Context) {
	var req RestSecondsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.StartRest(req.Seconds)
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) PauseRest(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.PauseRest()
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) ResumeRest(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.ResumeRest()
	h.respond(c, coord, st, nil, err)
}

func (h *TimerHandler) ResetRest(c *gin.Context) {
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, err := coord.ResetRest()
	h.respond(c, coord, st, nil, err)
}

// SetRestDuration edits the countdown length. While a countdown is running
// the edit is ignored and "changed" is false.
func (h *TimerHandler) SetRestDuration(c *gin.Context) {
	var req RestSecondsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, changed, err := coord.SetRestDuration(req.Seconds)
	h.respond(c, coord, st, &changed, err)
}

func (h *TimerHandler) ApplyRestPreset(c *gin.Context) {
	seconds, err := strconv.ParseInt(c.Param("seconds"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid preset.")
		return
	}
	coord, ok := h.coordinator(c)
	if !ok {
		return
	}
	st, changed, err := coord.ApplyRestPreset(seconds)
	h.respond(c, coord, st, &changed, err)
}
