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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/curriculum-api/api/swagger"
	"github.com/noah-isme/curriculum-api/internal/handler"
	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/internal/repository"
	"github.com/noah-isme/curriculum-api/internal/service"
	"github.com/noah-isme/curriculum-api/pkg/cache"
	"github.com/noah-isme/curriculum-api/pkg/config"
	"github.com/noah-isme/curriculum-api/pkg/database"
	"github.com/noah-isme/curriculum-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/curriculum-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/curriculum-api/pkg/middleware/requestid"
	"github.com/noah-isme/curriculum-api/pkg/tracing"
)

// @title Curriculum Lifecycle API
// @version 1.0.0
// @description Curriculum versions, review workflow and rollout mappings
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()

	var (
		statsCache *service.CacheService
		notifier   = service.NewTransitionNotifier(metrics, nil, logr)
	)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable; stats cache and transition signals disabled", zap.Error(err))
		} else {
			defer client.Close()
			statsCache = service.NewCacheService(repository.NewCacheRepository(client), metrics, cfg.StatsCache.TTL, logr, cfg.StatsCache.Enabled)
			if cfg.Signals.Enabled {
				notifier = service.NewTransitionNotifier(metrics, repository.NewTransitionPublisher(client, cfg.Signals.Channel), logr)
			}
		}
	}

	auditEmitter := service.NewAuditEmitter(repository.NewAuditRepository(db), metrics, logr, cfg.Audit)
	auditEmitter.Start(ctx)
	defer auditEmitter.Stop()

	validate := validator.New()
	frameworkRepo := repository.NewFrameworkRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	userRepo := repository.NewUserRepository(db)

	frameworkSvc := service.NewFrameworkService(frameworkRepo, versionRepo, db, auditEmitter, validate, logr)
	versionSvc := service.NewVersionService(frameworkRepo, versionRepo, db, statsCache, cfg.StatsCache.TTL, notifier, auditEmitter, validate, logr)
	approvalSvc := service.NewApprovalService(approvalRepo, versionRepo, frameworkRepo, userRepo, db, statsCache, notifier, auditEmitter, validate, logr)
	mappingSvc := service.NewMappingService(mappingRepo, versionRepo, repository.NewCampusRepository(db), db, notifier, auditEmitter, cfg.Mappings, validate, logr)
	structureSvc := service.NewStructureService(
		repository.NewCourseRepository(db),
		repository.NewUnitRepository(db),
		repository.NewResourceRepository(db),
		service.NewStructureGuard(repository.NewOwnershipRepository(db)),
		db, auditEmitter, validate, logr,
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(metrics))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	registerRoutes(r, cfg, routeHandlers{
		identity:   service.NewIdentityService(cfg.JWT.Secret, cfg.JWT.Issuer),
		frameworks: handler.NewFrameworkHandler(frameworkSvc, versionSvc),
		versions:   handler.NewVersionHandler(versionSvc),
		approvals:  handler.NewApprovalHandler(approvalSvc),
		structure:  handler.NewStructureHandler(structureSvc),
		mappings:   handler.NewMappingHandler(mappingSvc),
		metrics:    handler.NewMetricsHandler(metrics, db),
	})

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
