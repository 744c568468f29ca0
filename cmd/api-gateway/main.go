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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/schoolcore/timetable-api/api/swagger"
	"github.com/schoolcore/timetable-api/internal/handler"
	"github.com/schoolcore/timetable-api/internal/middleware"
	"github.com/schoolcore/timetable-api/internal/models"
	"github.com/schoolcore/timetable-api/internal/repository"
	"github.com/schoolcore/timetable-api/internal/service"
	"github.com/schoolcore/timetable-api/pkg/cache"
	"github.com/schoolcore/timetable-api/pkg/config"
	"github.com/schoolcore/timetable-api/pkg/database"
	"github.com/schoolcore/timetable-api/pkg/jobs"
	"github.com/schoolcore/timetable-api/pkg/logger"
	corsmiddleware "github.com/schoolcore/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolcore/timetable-api/pkg/middleware/requestid"
	"github.com/schoolcore/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description Timetable generation and lesson lifecycle engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	exportArchive, err := storage.NewExportArchive(cfg.Export.Dir)
	if err != nil {
		logr.Fatal("failed to prepare export archive", zap.Error(err))
	}

	// Repositories.
	lessonRepo := repository.NewLessonRepository(db)
	assignmentRepo := repository.NewWeeklyAssignmentRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	annotationRepo := repository.NewLessonAnnotationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	notifySvc := service.NewNotificationService(logr, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		BufferSize: cfg.Notify.BufferSize,
		MaxRetries: cfg.Notify.MaxRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notifySvc.Start(ctx)
	defer notifySvc.Stop()

	if cfg.Export.TTL > 0 {
		go sweepExports(ctx, exportArchive, cfg.Export.TTL, logr)
	}

	progressSvc := service.NewProgressService(lessonRepo, subjectRepo, cacheRepo, metricsSvc, logr, cfg.Progress.CacheTTL)
	scheduleSvc := service.NewScheduleService(
		assignmentRepo,
		lessonRepo,
		requirementRepo,
		yearRepo,
		classRepo,
		subjectRepo,
		teacherRepo,
		timeSlotRepo,
		lessonRepo,
		metricsSvc,
		notifySvc,
		nil,
		logr,
		service.ScheduleConfig{
			DaysPerWeek:           cfg.Academic.DaysPerWeek,
			PeriodsPerDay:         cfg.Academic.PeriodsPerDay,
			MaxAttemptsPerSubject: cfg.Scheduler.MaxAttemptsPerSubject,
			ClusteringWeight:      cfg.Scheduler.ClusteringWeight,
			BalanceWeight:         cfg.Scheduler.BalanceWeight,
			RepairIterations:      cfg.Scheduler.RepairIterations,
		},
	)
	lessonSvc := service.NewLessonService(lessonRepo, yearRepo, requirementRepo, annotationRepo, metricsSvc, notifySvc, progressSvc, nil, logr)

	// Handlers.
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, exportArchive)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	progressHandler := handler.NewProgressHandler(progressSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Config{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleManager)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleTeacher)

	classes := api.Group("/classes/:classId")
	{
		classes.POST("/schedule/initialize", staff,
			middleware.Audit(auditRepo, models.AuditActionScheduleInitialize, "schedule"),
			scheduleHandler.Initialize)
		classes.GET("/schedule", anyRole, scheduleHandler.GetWeekly)
		classes.GET("/schedule/status", anyRole, scheduleHandler.Status)
		classes.GET("/schedule/empty-slots", anyRole, scheduleHandler.EmptySlots)
		classes.GET("/schedule/export", anyRole, scheduleHandler.Export)
		classes.GET("/tests", anyRole, lessonHandler.ListUpcomingTests)
		classes.GET("/progress", anyRole, progressHandler.GetClassProgress)
	}

	lessons := api.Group("/lessons")
	{
		lessons.GET("", anyRole, lessonHandler.List)
		lessons.PATCH("/:id/status", anyRole,
			middleware.Audit(auditRepo, models.AuditActionLessonStatusUpdate, "lesson"),
			lessonHandler.UpdateStatus)
		lessons.POST("/status/bulk", anyRole,
			middleware.Audit(auditRepo, models.AuditActionLessonStatusUpdate, "lesson"),
			lessonHandler.BulkUpdateStatus)
		lessons.POST("/:id/makeup", anyRole,
			middleware.Audit(auditRepo, models.AuditActionLessonMakeup, "lesson"),
			lessonHandler.ScheduleMakeup)
		lessons.POST("/:id/tests", anyRole, lessonHandler.CreateTestInfo)
		lessons.DELETE("/:id/tests/:testId", anyRole, lessonHandler.DeleteTestInfo)
		lessons.POST("/:id/reminders", anyRole, lessonHandler.CreateReminder)
		lessons.DELETE("/:id/reminders/:reminderId", anyRole, lessonHandler.DeleteReminder)
	}

	api.POST("/leave-approvals", staff,
		middleware.Audit(auditRepo, models.AuditActionLeaveApproval, "leave"),
		lessonHandler.HandleLeaveApproval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown incomplete", zap.Error(err))
	}
}

// sweepExports periodically drops archived export files older than the TTL.
func sweepExports(ctx context.Context, archive *storage.ExportArchive, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := archive.Sweep(ttl)
			if err != nil {
				logr.Warn("export sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logr.Info("expired exports removed", zap.Int("count", removed))
			}
		}
	}
}
