package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wrprafra/newsletter-project/internal/ai"
	"github.com/wrprafra/newsletter-project/internal/config"
	"github.com/wrprafra/newsletter-project/internal/credentials"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/images"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
	"github.com/wrprafra/newsletter-project/internal/service"
	"github.com/wrprafra/newsletter-project/internal/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "newsletter-worker",
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	logger.SetDefault(appLogger)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := queue.NewClient(ctx, &cfg.Redis)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer rdb.Close()

	objectStorage, err := storage.NewObjectStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	credStore := credentials.NewStore(cfg.Paths.Credentials)
	newsletterRepo := repository.NewNewsletterRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)

	workQueue := queue.NewQueue(rdb)
	notifier := queue.NewNotifier(rdb)
	imageCache := queue.NewImageCache(rdb, time.Duration(cfg.Pixabay.CacheTTLDays)*24*time.Hour)

	enricher := ai.NewClient(&ai.Config{
		Model:   cfg.AI.Model,
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
	})
	pixabay := images.NewPixabayClient(cfg.Pixabay.APIKey)
	resolver := images.NewResolver(pixabay, imageCache, objectStorage, cfg.Pixabay.RPMBudget)

	mailboxFor := func(ctx context.Context, userID string) (service.Mailbox, error) {
		conf, tok, err := credStore.ClientFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		return gmail.NewClient(ctx, conf, tok)
	}

	worker := service.NewWorker(newsletterRepo, overrideRepo, workQueue, mailboxFor, enricher, resolver, notifier, service.WorkerConfig{
		HeavySlots: cfg.Worker.HeavySlots,
		PopTimeout: time.Duration(cfg.Worker.PopTimeoutSecs) * time.Second,
		ThreadMode: cfg.Ingest.ThreadMode,
	})

	if err := worker.Run(logger.WithContext(ctx, appLogger)); err != nil && err != context.Canceled {
		appLogger.WithError(err).Fatal("Worker failed")
	}
	appLogger.Info("Worker exited")
}
