package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/config"
	"github.com/courselab/quiz-service/internal/handlers"
	"github.com/courselab/quiz-service/internal/repositories/postgres"
	"github.com/courselab/quiz-service/internal/services"
	"github.com/courselab/quiz-service/internal/session"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/courselab/quiz-service/internal/validator"
	"github.com/courselab/quiz-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewDefaultLogger()
	if cfg.Environment == "development" {
		logger = utils.NewDevelopmentLogger()
	}
	slogLogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		logger.Error("Failed to build cache logger", "error", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	cacheService := cache.NewRedisCache(redisClient, zapLogger)

	quizRepo := postgres.NewQuizPostgreSQL(db)
	progressRepo := postgres.NewProgressPostgreSQL(db)

	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	v := validator.New()
	sessionManager := session.NewManager()

	quizService := services.NewQuizService(quizRepo, cacheService, slogLogger, v)
	sessionService := services.NewSessionService(quizRepo, sessionManager, publisher, slogLogger)
	progressService := services.NewProgressService(cacheService, progressRepo, publisher, slogLogger, logger)
	importExportService := services.NewImportExportService(slogLogger, v)

	handlers.InitAuth(cfg.Casdoor)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(
		quizService,
		sessionService,
		progressService,
		importExportService,
		logger,
	)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
