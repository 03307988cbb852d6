package api

import (
	"net/http"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/timer"

	"github.com/gin-gonic/gin"
)

// ProgramHandler serves program definitions and their calendar.
type ProgramHandler struct {
	programService service.ProgramService
}

func NewProgramHandler(programService service.ProgramService) *ProgramHandler {
	return &ProgramHandler{programService: programService}
}

// --- DTOs ---

type CreateProgramRequest struct {
	Name         string                    `json:"name" binding:"required"`
	Mode         domain.ScheduleMode       `json:"mode" binding:"required,oneof=weekly rotation"`
	StartingDate string                    `json:"startingDate" binding:"omitempty,datetime=2006-01-02"`
	Days         []service.ProgramDayInput `json:"days" binding:"dive"`
}

type ProgramDayResponse struct {
	ID         string `json:"id"`
	DayNumber  int    `json:"dayNumber"`
	Title      string `json:"title"`
	HasWorkout bool   `json:"hasWorkout"`
}

type ProgramResponse struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Mode         domain.ScheduleMode  `json:"mode"`
	StartingDate string               `json:"startingDate,omitempty"`
	Days         []ProgramDayResponse `json:"days"`
	CreatedAt    time.Time            `json:"createdAt"`
}

func MapProgramToResponse(p *domain.Program) ProgramResponse {
	resp := ProgramResponse{
		ID:        p.ID.Hex(),
		Name:      p.Name,
		Mode:      p.Mode,
		Days:      make([]ProgramDayResponse, 0, len(p.Days)),
		CreatedAt: p.CreatedAt,
	}
	if p.StartingDate != nil {
		resp.StartingDate = p.StartingDate.Format(timer.DateLayout)
	}
	for _, d := range p.Days {
		resp.Days = append(resp.Days, ProgramDayResponse{
			ID:         d.ID.Hex(),
			DayNumber:  d.DayNumber,
			Title:      d.Title,
			HasWorkout: d.HasWorkout,
		})
	}
	return resp
}

// --- Handler Methods ---

// CreateProgram godoc
// @Summary Create a workout program
// @Tags Programs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param program body CreateProgramRequest true "Program definition"
// @Success 201 {object} ProgramResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /programs [post]
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	var req CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	input := service.CreateProgramInput{Name: req.Name, Mode: req.Mode, Days: req.Days}
	if req.StartingDate != "" {
		start, err := time.Parse(timer.DateLayout, req.StartingDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid startingDate.")
			return
		}
		input.StartingDate = &start
	}

	program, err := h.programService.CreateProgram(c.Request.Context(), userID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapProgramToResponse(program))
}

// ListPrograms godoc
// @Summary List the user's programs
// @Tags Programs
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ProgramResponse
// @Router /programs [get]
func (h *ProgramHandler) ListPrograms(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programs, err := h.programService.ListPrograms(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resp := make([]ProgramResponse, len(programs))
	for i := range programs {
		resp[i] = MapProgramToResponse(&programs[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProgramHandler) GetProgram(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, ok := objectIDParam(c, "programId")
	if !ok {
		return
	}
	program, err := h.programService.GetProgram(c.Request.Context(), userID, programID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// GetCalendar godoc
// @Summary Calendar markers for a program
// @Description One marker per date in [from, to] with the cycle day, whether a day is scheduled and the logged workout, if any.
// @Tags Programs
// @Produce json
// @Security BearerAuth
// @Param from query string true "First date (YYYY-MM-DD)"
// @Param to query string true "Last date (YYYY-MM-DD)"
// @Success 200 {array} service.CalendarMarker
// @Failure 400 {object} gin.H "Invalid range"
// @Router /programs/{programId}/calendar [get]
func (h *ProgramHandler) GetCalendar(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, ok := objectIDParam(c, "programId")
	if !ok {
		return
	}
	from, errFrom := time.Parse(timer.DateLayout, c.Query("from"))
	to, errTo := time.Parse(timer.DateLayout, c.Query("to"))
	if errFrom != nil || errTo != nil {
		abortWithError(c, http.StatusBadRequest, "Query parameters 'from' and 'to' must be YYYY-MM-DD.")
		return
	}

	markers, err := h.programService.Calendar(c.Request.Context(), userID, programID, from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, markers)
}
