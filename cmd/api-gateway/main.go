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
	"go.uber.org/zap"

	_ "github.com/edusys/exam-ranking-api/api/swagger"
	"github.com/edusys/exam-ranking-api/internal/handler"
	"github.com/edusys/exam-ranking-api/internal/middleware"
	"github.com/edusys/exam-ranking-api/internal/models"
	"github.com/edusys/exam-ranking-api/internal/repository"
	"github.com/edusys/exam-ranking-api/internal/service"
	"github.com/edusys/exam-ranking-api/pkg/cache"
	"github.com/edusys/exam-ranking-api/pkg/config"
	"github.com/edusys/exam-ranking-api/pkg/database"
	"github.com/edusys/exam-ranking-api/pkg/jobs"
	"github.com/edusys/exam-ranking-api/pkg/logger"
	corsmiddleware "github.com/edusys/exam-ranking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusys/exam-ranking-api/pkg/middleware/requestid"
)

// @title Exam Ranking API
// @version 0.1.0
// @description Score import, ranking recompute and exam analysis service
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it the service still imports and ranks,
	// it just loses the analysis cache and falls back to the degraded
	// ranking trigger.
	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	scoreRepo := repository.NewScoreRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	examRepo := repository.NewExamRepository(db)

	metricsSvc := service.NewMetricsService()
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analysis.CacheTTL, logr, cfg.Analysis.CacheEnabled)
	}

	rankingSvc := service.NewRankingService(scoreRepo, examRepo, validator.New(), metricsSvc, logr, cfg.Ranking.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var trigger service.RankingTrigger
	if cfg.Ranking.AsyncEnabled && cacheRepo != nil {
		worker := service.NewRankingWorker(rankingSvc, logr)
		queue := jobs.NewQueue("ranking", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Ranking.WorkerConcurrency,
			MaxRetries: cfg.Ranking.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		trigger = service.NewQueueTrigger(queue, cacheRepo, logr, cfg.Ranking.JobTimeout)
	} else {
		trigger = service.NewNoopTrigger(logr)
	}

	importSvc := service.NewImportService(scoreRepo, studentRepo, examRepo, trigger, metricsSvc, logr, cfg.Import.MaxScoreValue, cfg.Import.MaxErrorDetails)
	analysisSvc := service.NewAnalysisService(scoreRepo, examRepo, cacheSvc, metricsSvc, logr, cfg.Analysis.CacheTTL, models.DefaultMaxScoreTable())

	scoreHandler := handler.NewScoreHandler(scoreRepo, importSvc)
	rankingHandler := handler.NewRankingHandler(rankingSvc, trigger)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/scores", scoreHandler.List)
		api.POST("/scores/import", scoreHandler.Import)
		api.GET("/scores/import/template", scoreHandler.Template)

		api.POST("/rankings/recompute", rankingHandler.Recompute)
		api.POST("/rankings/recompute/async", rankingHandler.RecomputeAsync)

		api.GET("/analysis/class", analysisHandler.Class)
		api.GET("/analysis/grade", analysisHandler.Grade)
		api.GET("/analysis/class/export", analysisHandler.ExportClass)
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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
