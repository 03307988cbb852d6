package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/workout-timer/internal/api"
	"alcyxob/workout-timer/internal/config"
	"alcyxob/workout-timer/internal/kv"
	"alcyxob/workout-timer/internal/logging"
	"alcyxob/workout-timer/internal/repository"
	"alcyxob/workout-timer/internal/repository/mongo"
	"alcyxob/workout-timer/internal/service"
	"alcyxob/workout-timer/internal/storage"
	"alcyxob/workout-timer/internal/timer"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(cfg.Logging)
	log.Logger = logger
	logger.Info().Str("version", version).Str("config", configPath).Msg("Starting workout timer server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(ctx, cfg.Database.URI)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		logger.Info().Msg("Disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info().Str("database", cfg.Database.Name).Msg("Database connection established")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			logger.Error().Err(err).Msg("Failed to ensure indexes")
			return
		}
		logger.Info().Msg("Indexes ensured")
	}()

	// --- Archive Storage ---
	var archive storage.FileStorage
	if cfg.S3.Enabled() {
		archive, err = storage.NewS3Storage(ctx, cfg.S3, logger)
		if err != nil {
			return fmt.Errorf("init s3 storage: %w", err)
		}
	} else {
		logger.Info().Msg("S3 bucket not configured, workout archives disabled")
	}

	// --- Snapshot Store ---
	snapshots, err := kv.Open(cfg.Timer)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close snapshot store")
		}
	}()
	logger.Info().Str("backend", cfg.Timer.SnapshotBackend).Msg("Snapshot store opened")

	// --- Repositories & Services ---
	programRepo := mongo.NewMongoProgramRepository(appDB)
	logRepo := mongo.NewMongoWorkoutLogRepository(appDB)

	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration)
	programService, logService := newServices(programRepo, logRepo, archive, logger)

	// --- Timers ---
	hub := newHub(cfg.Timer, snapshots, logService, logger)
	tickCtx, stopTicks := context.WithCancel(context.Background())
	defer stopTicks()
	go hub.Run(tickCtx, cfg.Timer.TickInterval)

	// --- HTTP ---
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger.With().Str("component", "http").Logger()))
	api.SetupRoutes(router, tokens, hub, programService, logService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timer.FlushTimeout+5*time.Second)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	stopTicks()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Not every running timer could be flushed")
	}

	logger.Info().Msg("Server exiting")
	return errors.Join(errs...)
}

// newServices builds the program and program-log services. The constructors
// name their own log component.
func newServices(
	programRepo repository.ProgramRepository,
	logRepo repository.WorkoutLogRepository,
	archive storage.FileStorage,
	logger zerolog.Logger,
) (service.ProgramService, service.ProgramLogService) {
	programService := service.NewProgramService(programRepo, logRepo)
	return programService, service.NewProgramLogService(programService, logRepo, archive, logger)
}

// newHub builds the per-user timer hub over the snapshot store.
func newHub(cfg config.TimerConfig, snapshots kv.Store, logService service.ProgramLogService, logger zerolog.Logger) *timer.Hub {
	return timer.NewHub(timer.HubConfig{
		Base: timer.Options{
			Store:              timer.NewSnapshotStore(snapshots, logger),
			Logger:             logger.With().Str("component", "timer").Logger(),
			Notifier:           timer.LogNotifier{Logger: logger.With().Str("component", "notices").Logger()},
			CheckpointInterval: cfg.CheckpointInterval,
			FlushTimeout:       cfg.FlushTimeout,
			RestPresets:        cfg.RestPresets,
			DefaultRestSeconds: cfg.DefaultRestSeconds,
		},
		LogsFor: func(userID string) timer.ProgramLog {
			id, _ := primitive.ObjectIDFromHex(userID)
			return logService.ForUser(id)
		},
		IdleTimeout: cfg.IdleTimeout,
	})
}
