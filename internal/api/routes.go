package api

import (
	"net/http"

	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/timer"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(
	router *gin.Engine,
	tokens service.TokenService,
	hub *timer.Hub,
	programService service.ProgramService,
	logService service.ProgramLogService,
) {
	timerHandler := NewTimerHandler(hub, programService)
	programHandler := NewProgramHandler(programService)
	logHandler := NewProgramLogHandler(logService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/api/v1")
	protected.Use(AuthMiddleware(tokens))
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, ok := mustUserID(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex()})
		})

		// --- Timer Routes ---
		timerGroup := protected.Group("/timer")
		{
			timerGroup.PUT("/scope", timerHandler.SwitchScope)
			timerGroup.GET("", timerHandler.GetTimer)
			timerGroup.POST("/resume", timerHandler.ResumeFromBackground)

			timerGroup.POST("/session/start", timerHandler.StartSession)
			timerGroup.POST("/session/pause", timerHandler.PauseSession)
			timerGroup.POST("/session/complete", timerHandler.CompleteSession)
			timerGroup.POST("/session/reset", timerHandler.ResetSession)

			timerGroup.POST("/rest/start", timerHandler.StartRest)
			timerGroup.POST("/rest/pause", timerHandler.PauseRest)
			timerGroup.POST("/rest/resume", timerHandler.ResumeRest)
			timerGroup.POST("/rest/reset", timerHandler.ResetRest)
			timerGroup.PUT("/rest/duration", timerHandler.SetRestDuration)
			timerGroup.POST("/rest/preset/:seconds", timerHandler.ApplyRestPreset)
		}

		// --- Program Routes ---
		programGroup := protected.Group("/programs")
		{
			programGroup.POST("", programHandler.CreateProgram)
			programGroup.GET("", programHandler.ListPrograms)
			programGroup.GET("/:programId", programHandler.GetProgram)
			programGroup.GET("/:programId/calendar", programHandler.GetCalendar)

			programGroup.POST("/:programId/logs", logHandler.CreateWorkoutLog)
			programGroup.GET("/:programId/logs", logHandler.FindWorkoutLog)
		}

		// --- Workout Log Routes ---
		logGroup := protected.Group("/logs")
		{
			logGroup.GET("/:logId/checkpoint", logHandler.GetCheckpoint)
			logGroup.PUT("/:logId/checkpoint", logHandler.SaveCheckpoint)
			logGroup.POST("/:logId/complete", logHandler.CompleteWorkoutLog)
			logGroup.GET("/:logId/archive", logHandler.GetArchiveURL)
		}
	}
}
