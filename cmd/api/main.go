package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusrec/records-api/api/swagger"
	"github.com/campusrec/records-api/internal/grading"
	"github.com/campusrec/records-api/internal/handler"
	"github.com/campusrec/records-api/internal/middleware"
	"github.com/campusrec/records-api/internal/repository"
	"github.com/campusrec/records-api/internal/service"
	"github.com/campusrec/records-api/pkg/cache"
	"github.com/campusrec/records-api/pkg/config"
	"github.com/campusrec/records-api/pkg/database"
	"github.com/campusrec/records-api/pkg/logger"
	corsmiddleware "github.com/campusrec/records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusrec/records-api/pkg/middleware/requestid"
)

// @title Campus Records API
// @version 1.0.0
// @description Role-based academic records service: subjects, tests, marks and dashboards
// @BasePath /api
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	testRepo := repository.NewTestRepository(db)
	resultRepo := repository.NewResultRepository(db)

	validate := validator.New()
	policy := grading.NewPolicy(cfg.Grading.DCutoff)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, subjectRepo, resultRepo, cacheSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, userRepo, validate, logr)
	testSvc := service.NewTestService(testRepo, subjectRepo, resultRepo, cacheSvc, validate, logr)
	resultSvc := service.NewResultService(resultRepo, testRepo, userRepo, subjectRepo, cacheSvc, metricsSvc, policy, validate, logr)
	perfSvc := service.NewPerformanceService(resultRepo, userRepo, subjectRepo, testRepo, cacheSvc, service.PerformanceConfig{
		CacheTTL:      cfg.Dashboard.CacheTTL,
		TopPerformers: cfg.Dashboard.TopPerformers,
		TrendLength:   cfg.Dashboard.TrendLength,
	}, logr)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := userSvc.EnsureAdmin(startupCtx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
			logr.Sugar().Fatalw("admin bootstrap failed", "error", err)
		}
	} else {
		logr.Sugar().Infow("admin bootstrap skipped, credentials not configured")
	}

	if removed, err := subjectSvc.Reconcile(startupCtx); err != nil {
		logr.Sugar().Warnw("subject assignment reconciliation failed", "error", err)
	} else if removed > 0 {
		logr.Sugar().Infow("removed stale teacher assignments", "count", removed)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(userSvc),
		Subjects:  handler.NewSubjectHandler(subjectSvc),
		Tests:     handler.NewTestHandler(testSvc, resultSvc),
		Dashboard: handler.NewDashboardHandler(perfSvc, resultSvc),
	}, authSvc, metricsSvc)

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
