package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/health-campaign-api/api/swagger"
	"github.com/noah-isme/health-campaign-api/internal/handler"
	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/repository"
	"github.com/noah-isme/health-campaign-api/internal/service"
	"github.com/noah-isme/health-campaign-api/pkg/cache"
	"github.com/noah-isme/health-campaign-api/pkg/config"
	"github.com/noah-isme/health-campaign-api/pkg/database"
	"github.com/noah-isme/health-campaign-api/pkg/jobs"
	"github.com/noah-isme/health-campaign-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/health-campaign-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/health-campaign-api/pkg/middleware/requestid"
	"github.com/noah-isme/health-campaign-api/pkg/storage"
)

// @title Health Campaign Statistics API
// @version 1.0.0
// @description Health-promotion activity reporting, review and consolidation across health centers
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(db.DB, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Stats.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, consolidation cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, "health-campaign", logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	centerRepo := repository.NewHealthCenterRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	statsRepo := repository.NewStatsReportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	policy := service.DefaultPolicy

	authSvc := service.NewAuthService(userRepo, centerRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "health-campaign-api",
	})
	userSvc := service.NewUserService(userRepo, centerRepo, policy, validate, logr)
	centerSvc := service.NewHealthCenterService(centerRepo, userRepo, policy, validate, logr)
	registrySvc := service.NewRegistryService(categoryRepo, topicRepo, statsRepo, userRepo, cacheSvc, policy, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	statsSvc := service.NewStatsReportService(service.StatsReportServiceConfig{
		Repo:          statsRepo,
		Centers:       centerRepo,
		Notifications: notificationSvc,
		Metrics:       metricsSvc,
		Audit:         userRepo,
		Cache:         cacheSvc,
		Policy:        policy,
		Validator:     validate,
		Logger:        logr,
		Location:      loc,
	})
	consolidationSvc := service.NewConsolidationService(service.ConsolidationServiceConfig{
		Reports:  statsRepo,
		Centers:  centerRepo,
		Registry: registrySvc,
		Cache:    cacheSvc,
		Metrics:  metricsSvc,
		Policy:   policy,
		CacheTTL: cfg.Stats.CacheTTL,
		Logger:   logr,
		Location: loc,
	})

	campaignSvc := service.NewCampaignService(service.CampaignServiceConfig{
		Campaigns:     campaignRepo,
		Activities:    activityRepo,
		Centers:       centerRepo,
		Notifications: notificationSvc,
		Audit:         userRepo,
		Policy:        policy,
		Validator:     validate,
		Logger:        logr,
		Location:      loc,
	})
	registrationSvc := service.NewRegistrationService(service.RegistrationServiceConfig{
		Repo:          registrationRepo,
		Users:         userRepo,
		Centers:       centerRepo,
		Notifications: notificationSvc,
		Audit:         userRepo,
		Policy:        policy,
		Validator:     validate,
		Logger:        logr,
	})

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc, userSvc),
		Users:         handler.NewUserHandler(userSvc),
		Registry:      handler.NewRegistryHandler(registrySvc),
		HealthCenters: handler.NewHealthCenterHandler(centerSvc),
		Campaigns:     handler.NewCampaignHandler(campaignSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc),
		StatsReports:  handler.NewStatsReportHandler(statsSvc),
		Consolidation: handler.NewConsolidationHandler(consolidationSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc),
	}

	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(consolidationSvc, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)

		worker := service.NewReportWorker(reportJobRepo, exportSvc, metricsSvc, cfg.Exports.WorkerRetries, logr)
		exportQueue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		reportSvc := service.NewReportService(reportJobRepo, exportQueue, exportSvc, policy, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
			Location:        loc,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
		handlers.Reports = handler.NewReportHandler(reportSvc, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", handlers.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", handlers.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handlers, handler.RouteConfig{
		Authenticate: middleware.JWT(authSvc),
		Policy:       policy,
		Audit:        userRepo,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	logr.Info("server shutdown complete")
}
