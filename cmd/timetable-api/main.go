package main

import (
	"context"
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

	_ "github.com/arka-edu/timetable-api/api/swagger"
	"github.com/arka-edu/timetable-api/internal/handler"
	"github.com/arka-edu/timetable-api/internal/middleware"
	"github.com/arka-edu/timetable-api/internal/repository"
	"github.com/arka-edu/timetable-api/internal/service"
	"github.com/arka-edu/timetable-api/migrations"
	"github.com/arka-edu/timetable-api/pkg/cache"
	"github.com/arka-edu/timetable-api/pkg/config"
	"github.com/arka-edu/timetable-api/pkg/database"
	"github.com/arka-edu/timetable-api/pkg/jobs"
	"github.com/arka-edu/timetable-api/pkg/logger"
	corsmiddleware "github.com/arka-edu/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arka-edu/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description Branch-scoped timetable, conflict and substitution engine
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := migrations.Up(db.DB); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The grid cache degrades to direct reads without redis.
		logr.Sugar().Warnw("redis unavailable, grid cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	timeSlotRepo := repository.NewTimeSlotRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)
	constraintRepo := repository.NewConstraintRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	constraintStore := service.NewConstraintStore(constraintRepo)
	conflictValidator := service.NewConflictValidator(timeSlotRepo, directoryRepo, roomRepo, periodRepo, substitutionRepo, constraintStore)

	slotCatalogSvc := service.NewSlotCatalogService(timeSlotRepo, nil, logr)
	roomSvc := service.NewRoomService(roomRepo, nil, logr)
	assignerSvc := service.NewAssignerService(db, periodRepo, conflictValidator, timeSlotRepo, cacheRepo, nil, logr, metricsSvc, service.AssignerConfig{
		MaxRetries:   cfg.Assigner.MaxRetries,
		RetryBackoff: cfg.Assigner.RetryBackoff,
		CacheEnabled: cfg.Grid.CacheEnabled && redisClient != nil,
		CacheTTL:     cfg.Grid.CacheTTL,
	})
	substitutionSvc := service.NewSubstitutionService(db, substitutionRepo, periodRepo, directoryRepo, conflictValidator, constraintStore, timeSlotRepo, nil, logr, metricsSvc, service.SubstitutionConfig{
		MaxRetries:   cfg.Assigner.MaxRetries,
		RetryBackoff: cfg.Assigner.RetryBackoff,
	})

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Substitutions.SweeperEnabled {
		startSweeper(shutdownCtx, substitutionSvc, cfg.Substitutions, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		TimeSlots:     handler.NewTimeSlotHandler(slotCatalogSvc),
		Rooms:         handler.NewRoomHandler(roomSvc),
		Timetable:     handler.NewTimetableHandler(assignerSvc),
		Substitutions: handler.NewSubstitutionHandler(substitutionSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc, db),
		Verifier:      middleware.NewTokenVerifier(cfg.JWT.Secret),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logr.Sugar().Errorw("http shutdown error", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// startSweeper enqueues a periodic job that completes approved substitutions
// whose date has passed.
func startSweeper(ctx context.Context, svc *service.SubstitutionService, cfg config.SubstitutionsConfig, logr *zap.Logger) {
	queue := jobs.NewQueue("substitution-sweeper", func(ctx context.Context, job jobs.Job) error {
		completed, err := svc.SweepCompleted(ctx)
		if err != nil {
			return err
		}
		if completed > 0 {
			logr.Sugar().Infow("substitutions completed by sweeper", "count", completed)
		}
		return nil
	}, jobs.QueueConfig{Workers: cfg.SweeperWorkers, Logger: logr})

	queue.Start(ctx)

	go func() {
		ticker := time.NewTicker(cfg.SweeperInterval)
		defer ticker.Stop()
		defer queue.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := queue.Enqueue(jobs.Job{Type: "sweep", Enqueued: now}); err != nil {
					logr.Sugar().Warnw("failed to enqueue sweep", "error", err)
				}
			}
		}
	}()
}
