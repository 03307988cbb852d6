package main

// @title Workout Timer API
// @version 1.0
// @description Workout session timers, rest countdowns and program calendars.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	Execute()
}
