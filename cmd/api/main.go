package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/strumline/guitar-crm-api/api/swagger"
	"github.com/strumline/guitar-crm-api/internal/handler"
	"github.com/strumline/guitar-crm-api/internal/middleware"
	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/repository"
	"github.com/strumline/guitar-crm-api/internal/scheduler"
	"github.com/strumline/guitar-crm-api/internal/service"
	"github.com/strumline/guitar-crm-api/pkg/cache"
	"github.com/strumline/guitar-crm-api/pkg/config"
	"github.com/strumline/guitar-crm-api/pkg/database"
	"github.com/strumline/guitar-crm-api/pkg/jobs"
	"github.com/strumline/guitar-crm-api/pkg/logger"
	corsmiddleware "github.com/strumline/guitar-crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/strumline/guitar-crm-api/pkg/middleware/requestid"
)

// @title Guitar CRM API
// @version 1.0.0
// @description Student relationship management for guitar teachers
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached reads without Redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	profileRepo := repository.NewProfileRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	songRepo := repository.NewSongRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	authService := service.NewAuthService(profileRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "guitar-crm-api",
	})
	profileService := service.NewProfileService(profileRepo, validate, logr)
	lessonService := service.NewLessonService(lessonRepo, profileRepo, cacheRepo, validate, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, profileRepo, lessonRepo, cacheRepo, validate, logr)
	songService := service.NewSongService(songRepo, validate, logr)
	healthService := service.NewHealthService(lessonRepo, assignmentRepo, cacheRepo, cfg.Health.CacheTTL, logr)
	notificationService := service.NewNotificationService(notificationRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})
	insightsService := service.NewInsightsService(profileRepo, lessonRepo, assignmentRepo, songRepo, healthService, notificationService, service.InsightsConfig{
		AtRiskThreshold:  cfg.Insights.AtRiskThreshold,
		OverdueBatchSize: cfg.Insights.OverdueBatchSize,
	}, logr)
	exportService := service.NewExportService(healthService, songService, logr)
	metricsService := service.NewMetricsService()
	healthService.Instrument(metricsService)

	authHandler := handler.NewAuthHandler(authService)
	profileHandler := handler.NewProfileHandler(profileService)
	lessonHandler := handler.NewLessonHandler(lessonService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	songHandler := handler.NewSongHandler(songService)
	healthHandler := handler.NewHealthHandler(healthService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/me", authHandler.Me)
		authed.PUT("/password", authHandler.ChangePassword)
	}

	protected := api.Group("", middleware.JWT(authService))

	users := protected.Group("/users")
	{
		users.GET("", middleware.RBAC(middleware.RoleAdmin), profileHandler.List)
		users.GET("/:id", middleware.RBAC(middleware.RoleAdmin, middleware.AllowSelf), profileHandler.Get)
		users.POST("", middleware.RBAC(middleware.RoleAdmin), middleware.Audit(profileRepo, models.AuditActionCreate, "users"), profileHandler.Create)
		users.PUT("/:id", middleware.RBAC(middleware.RoleAdmin), middleware.Audit(profileRepo, models.AuditActionUpdate, "users"), profileHandler.Update)
		users.DELETE("/:id", middleware.RBAC(middleware.RoleAdmin), middleware.Audit(profileRepo, models.AuditActionDelete, "users"), profileHandler.Delete)
	}

	lessons := protected.Group("/lessons")
	{
		lessons.GET("", lessonHandler.List)
		lessons.GET("/:id", lessonHandler.Get)
		lessons.POST("", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), lessonHandler.Create)
		lessons.PUT("/:id", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), lessonHandler.Update)
		lessons.DELETE("/:id", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), lessonHandler.Delete)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.GET("", assignmentHandler.List)
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.POST("", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), assignmentHandler.Create)
		assignments.PUT("/:id", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), assignmentHandler.Update)
		assignments.DELETE("/:id", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), assignmentHandler.Delete)
		assignments.POST("/:id/complete", assignmentHandler.Complete)
	}

	songs := protected.Group("/songs")
	{
		songs.GET("", songHandler.List)
		songs.GET("/progress", songHandler.ListProgress)
		songs.POST("/progress", songHandler.SetProgress)
		songs.DELETE("/progress/:id", songHandler.DeleteProgress)
		songs.GET("/:id", songHandler.Get)
		songs.POST("", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), songHandler.Create)
		songs.PUT("/:id", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), songHandler.Update)
		songs.DELETE("/:id", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), songHandler.Delete)
	}

	protected.GET("/students/health", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), healthHandler.Dashboard)

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.GET("/preferences", notificationHandler.Preferences)
		notifications.PUT("/preferences", notificationHandler.SetPreference)
	}

	exports := protected.Group("/exports")
	{
		exports.GET("/health", middleware.RBAC(middleware.RoleTeacher, middleware.RoleAdmin), exportHandler.HealthCSV)
		exports.GET("/progress", exportHandler.ProgressPDF)
	}

	protected.GET("/metrics/summary", middleware.RBAC(middleware.RoleAdmin), metricsHandler.Snapshot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	var cronJobs *scheduler.Scheduler
	if cfg.Insights.Enabled {
		cronJobs = scheduler.New(insightsService, cfg.Insights, logr)
		if err := cronJobs.Start(); err != nil {
			logr.Sugar().Fatalw("failed to start scheduler", "error", err)
		}
		defer cronJobs.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
