package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bandup/session-service/internal/auth"
	"github.com/bandup/session-service/internal/cache"
	"github.com/bandup/session-service/internal/catalog"
	"github.com/bandup/session-service/internal/config"
	"github.com/bandup/session-service/internal/grading"
	"github.com/bandup/session-service/internal/handlers"
	"github.com/bandup/session-service/internal/repositories"
	"github.com/bandup/session-service/internal/repositories/postgres"
	"github.com/bandup/session-service/internal/session"
	"github.com/bandup/session-service/internal/store"
	"github.com/bandup/session-service/internal/utils"
	"github.com/bandup/session-service/internal/validator"
	"github.com/bandup/session-service/pkg"
	"github.com/gin-gonic/gin"
)

const keyPrefix = "bandup:session-service:"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewLogger("development").LogError(err, "Failed to load config")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)
	slogger := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	// The audit log is optional; sessions keep working without Postgres.
	var submissionLogs repositories.SubmissionLogRepository
	if db, err := pkg.InitDatabase(cfg); err != nil {
		logger.LogError(err, "Submission audit log disabled")
	} else {
		submissionLogs = postgres.NewSubmissionLogPostgreSQL(db)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.LogError(err, "Failed to create event publisher")
		os.Exit(1)
	}
	defer publisher.Close()

	loader := catalog.NewLoader(catalog.LoaderConfig{
		API: catalog.NewClient(catalog.ClientConfig{
			BaseURL: cfg.ContentAPIURL,
			Timeout: cfg.HTTPTimeout,
		}),
		Cache:  cache.NewRedisCache(redisClient, keyPrefix+"cache:", slogger),
		TTL:    cfg.CacheTTL,
		Logger: slogger,
	})

	dispatcher := grading.NewDispatcher(grading.DispatcherConfig{
		API: grading.NewClient(grading.ClientConfig{
			BaseURL: cfg.GradingAPIURL,
			Timeout: cfg.HTTPTimeout,
		}),
		State:  store.NewRedisStore(redisClient, keyPrefix),
		Logs:   submissionLogs,
		Logger: slogger,
	})

	manager := session.NewManager(session.ManagerConfig{
		Loader:    loader,
		Submitter: dispatcher,
		Publisher: publisher,
		Logger:    slogger,
		IdleTTL:   cfg.SessionIdleTTL,
	})
	defer manager.Shutdown()
	go manager.RunSweeper(ctx, time.Minute)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.ContextLogger(logger), utils.LoggerMiddleware(logger))

	verifier := auth.NewVerifier(cfg.Casdoor)
	if verifier == nil {
		logger.Warn("CASDOOR_ENDPOINT not set, trusting " + auth.LearnerHeader + " header")
	}
	handlers.NewHandlerManager(manager, dispatcher, validator.New(), logger).
		SetupRoutes(router, auth.Middleware(verifier, slogger))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(err, "Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "Error shutting down server")
	}
	logger.Info("Server exited")
}
