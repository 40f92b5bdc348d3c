// Package main runs the booking platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agendamentos/backend/config"
	"github.com/agendamentos/backend/internal/auth"
	"github.com/agendamentos/backend/internal/events"
	"github.com/agendamentos/backend/internal/history"
	"github.com/agendamentos/backend/internal/middleware"
	"github.com/agendamentos/backend/internal/reports"
	"github.com/agendamentos/backend/internal/reservations"
	"github.com/agendamentos/backend/pkg/database"
	"github.com/agendamentos/backend/pkg/queue"
	"github.com/agendamentos/backend/pkg/redis"
	"github.com/agendamentos/backend/pkg/response"
	"github.com/agendamentos/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			// The export endpoints answer 503 while s3Client stays nil.
			s3Client = nil
			logger.Warn("exports disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth and user management
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Reservations
	reservationStore := reservations.NewRepository(pool)
	reservationService := reservations.NewService(reservationStore, logger)
	reservationHandler := reservations.NewHandler(reservationService, authRepo, logger)

	// History
	historyHandler := history.NewHandler(pool, logger)

	// Reports and exports
	jobQueue := queue.NewQueue(rdb.Client, logger)
	reportRepo := reports.NewRepository(pool)
	reportHandler := reports.NewHandler(reportRepo, jobQueue, s3Client, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.PUT("/auth/profile", authHandler.UpdateProfile)
		api.PUT("/auth/password", authHandler.ChangePassword)

		api.GET("/events", eventHandler.ListAvailable)
		api.GET("/events/:id", eventHandler.GetByID)

		api.POST("/reservations", reservationHandler.Create)
		api.GET("/reservations", reservationHandler.ListMine)
		api.GET("/reservations/:id", reservationHandler.Get)
		api.POST("/reservations/:id/cancel", reservationHandler.Cancel)

		api.GET("/stats", reservationHandler.Stats)
		api.GET("/history", historyHandler.ListMine)

		admin := api.Group("/admin", middleware.RequireRole("admin"))
		{
			admin.GET("/events", eventHandler.ListAll)
			admin.POST("/events", eventHandler.Create)
			admin.PATCH("/events/:id", eventHandler.Update)
			admin.DELETE("/events/:id", eventHandler.Delete)
			admin.GET("/events/:id/stats", eventHandler.Statistics)

			admin.POST("/reservations/:id/presence", reservationHandler.MarkPresent)
			admin.POST("/reservations/:id/absence", reservationHandler.MarkAbsent)

			admin.GET("/users", authHandler.List)
			admin.PATCH("/users/:id", authHandler.Patch)
			admin.POST("/users/:id/unlock", authHandler.Unlock)
			admin.GET("/users/:id/history", historyHandler.ListForUser)

			admin.GET("/reports/reservations", reportHandler.Reservations)
			admin.GET("/reports/users", reportHandler.Users)
			admin.GET("/reports/presence/:id", reportHandler.Presence)
			admin.POST("/reports/export", reportHandler.Export)
			admin.GET("/reports/export/:id", reportHandler.ExportStatus)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
