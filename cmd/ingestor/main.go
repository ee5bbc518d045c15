package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wrprafra/newsletter-project/internal/config"
	"github.com/wrprafra/newsletter-project/internal/credentials"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
	"github.com/wrprafra/newsletter-project/internal/service"
)

const lockTTL = 3 * time.Minute

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "newsletter-ingestor",
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

	credStore := credentials.NewStore(cfg.Paths.Credentials)
	newsletterRepo := repository.NewNewsletterRepository(db)
	workQueue := queue.NewQueue(rdb)
	seen := queue.NewSeenSets(rdb)
	kickstart := queue.NewKickstart(rdb)
	lock := queue.NewLock(rdb, "ingestor:leader", lockTTL, uuid.NewString())

	listerFor := func(ctx context.Context, userID string) (service.Lister, error) {
		conf, tok, err := credStore.ClientFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		return gmail.NewClient(ctx, conf, tok)
	}

	ingestor := service.NewIngestor(credStore, newsletterRepo, workQueue, seen, lock, kickstart, listerFor, service.IngestorConfig{
		PollInterval:   time.Duration(cfg.Ingest.PollSeconds) * time.Second,
		BackfillPages:  cfg.Ingest.BackfillPages,
		BackfillTarget: cfg.Ingest.BackfillTarget,
		GmailBatch:     int64(cfg.Ingest.GmailBatch),
		Query:          cfg.Ingest.Query,
		ThreadMode:     cfg.Ingest.ThreadMode,
	})

	if err := ingestor.Run(logger.WithContext(ctx, appLogger)); err != nil {
		appLogger.WithError(err).Fatal("Ingestor failed")
	}
	appLogger.Info("Ingestor exited")
}
