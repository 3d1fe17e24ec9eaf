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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-api/api/swagger"
	"github.com/noah-isme/attendance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/repository"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/cache"
	"github.com/noah-isme/attendance-api/pkg/config"
	"github.com/noah-isme/attendance-api/pkg/database"
	"github.com/noah-isme/attendance-api/pkg/jobs"
	"github.com/noah-isme/attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Attendance API
// @version 1.0.0
// @description Daily attendance, leave requests and attendance-based grading
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, logr)
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	var redisClient redis.UniversalClient
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisClient = client
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.MaxFileSizeBytes)
	if err != nil {
		return fmt.Errorf("init uploads storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	cleanup := jobs.NewQueue("picture-cleanup", service.NewPictureCleanupHandler(files, logr), jobs.QueueConfig{
		Workers:    1,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	cleanup.Start(ctx)
	defer cleanup.Stop()

	router := newRouter(cfg, logr, db, redisClient, files, signer, cleanup)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logr.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		return srv.Close()
	}
	logr.Info("server stopped")
	return nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient redis.UniversalClient, files *storage.LocalStorage, signer *storage.SignedURLSigner, cleanup *jobs.Queue) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "attendance-api",
	})
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.GradesTTL, logr, cfg.Cache.Enabled)
	userSvc := service.NewUserService(userRepo, files, signer, cleanup, cacheSvc, validate, logr, service.UserServiceConfig{
		AllowedExts: cfg.Uploads.AllowedExts,
		FilesPath:   "/files",
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, userRepo, userRepo, metrics, validate, logr, cfg.Location())
	leaveSvc := service.NewLeaveService(leaveRepo, userRepo, metrics, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, configRepo, cacheSvc, cfg.Cache.GradesTTL, userRepo, metrics, validate, logr)
	reportSvc := service.NewReportService(attendanceRepo, userRepo, validate, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc, cfg.Uploads.MaxFileSizeBytes),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Leave:      handler.NewLeaveHandler(leaveSvc),
		Grades:     handler.NewGradeHandler(gradeSvc),
		Reports:    handler.NewReportHandler(reportSvc),
		Metrics:    handler.NewMetricsHandler(metrics, db),
	}, handler.RouteDeps{
		Tokens: authSvc,
		Audit:  userRepo,
		Logger: logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
