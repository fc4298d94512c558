package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pacslink/pacslink/internal/app"
	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/auth"
	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/masterdata"
	"github.com/pacslink/pacslink/internal/observability"
	"github.com/pacslink/pacslink/internal/platform/cache"
	"github.com/pacslink/pacslink/internal/platform/db"
	"github.com/pacslink/pacslink/internal/shared"
	"github.com/pacslink/pacslink/internal/storage"
	"github.com/pacslink/pacslink/internal/token"
	"github.com/pacslink/pacslink/internal/users"
	"github.com/pacslink/pacslink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	guardMW := guard.Middleware{Logger: logger}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, guardMW)

	tokenRepo := token.NewRepository(dbpool)
	tokenService := token.NewService(tokenRepo)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, auth.NewGoogleCaptcha(cfg.CaptchaSecret))
	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:         logger,
		Service:        authService,
		Tokens:         tokenService,
		Audit:          auditService,
		SessionManager: sessionManager,
		Mailer:         jobClient,
		Purger:         jobClient,
		Guard:          guardMW,
		PublicHost:     cfg.PublicHost,
		Metrics:        metrics,
	})

	objectStore, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		logger.Error("init object store", slog.Any("error", err))
		os.Exit(1)
	}
	storageRepo := storage.NewRepository(dbpool)
	converter := storage.NewDCMTKConverter(cfg.DCMTKImage)
	storageService := storage.NewService(storageRepo, objectStore, converter, cfg.UploadDir, logger)
	storageHandler := storage.NewHandler(logger, storageService, jobClient, guardMW, metrics)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, auditService, jobClient, guardMW)

	masterdataRepo := masterdata.NewRepository(dbpool)
	masterdataHandler := masterdata.NewHandler(masterdataRepo, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		AuthHandler:       authHandler,
		UsersHandler:      usersHandler,
		AuditHandler:      auditHandler,
		MasterDataHandler: masterdataHandler,
		StorageHandler:    storageHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
