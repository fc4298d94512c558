package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pacslink/pacslink/internal/app"
	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/mail"
	"github.com/pacslink/pacslink/internal/platform/db"
	"github.com/pacslink/pacslink/internal/storage"
	"github.com/pacslink/pacslink/internal/token"
	"github.com/pacslink/pacslink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditService := audit.NewService(audit.NewRepository(pool))
	tokenService := token.NewService(token.NewRepository(pool))

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
	converter := storage.NewDCMTKConverter(cfg.DCMTKImage)
	storageService := storage.NewService(storage.NewRepository(pool), objectStore, converter, cfg.UploadDir, logger)

	sender := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	jobMetrics := jobs.NewMetrics(nil)
	mailJob := &jobs.MailJob{Sender: sender, Audit: auditService, Logger: logger, Metrics: jobMetrics}
	purgeJob := &jobs.PurgeJob{Storage: storageService, Logger: logger, Metrics: jobMetrics}
	convertJob := &jobs.ConvertJob{Storage: storageService, Logger: logger, Metrics: jobMetrics}
	sweepJob := &jobs.SweepJob{Tokens: tokenService, Logger: logger, Metrics: jobMetrics}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSendMail, Handler: mailJob.Handle},
			{Type: jobs.TaskStoragePurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskDicomConvert, Handler: convertJob.Handle},
			{Type: jobs.TaskTokenSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: jobs.NewTokenSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
