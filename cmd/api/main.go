package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wrprafra/newsletter-project/internal/api"
	"github.com/wrprafra/newsletter-project/internal/api/middleware"
	"github.com/wrprafra/newsletter-project/internal/config"
	"github.com/wrprafra/newsletter-project/internal/credentials"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
	"github.com/wrprafra/newsletter-project/internal/service"
	"github.com/wrprafra/newsletter-project/internal/settings"
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
		ServiceName: "newsletter-api",
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

	newsletterRepo := repository.NewNewsletterRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	settingsStore := settings.NewStore(cfg.Paths.Settings)
	credStore := credentials.NewStore(cfg.Paths.Credentials)

	workQueue := queue.NewQueue(rdb)
	kickstart := queue.NewKickstart(rdb)
	notifier := queue.NewNotifier(rdb)

	listerFor := func(ctx context.Context, userID string) (service.Lister, error) {
		conf, tok, err := credStore.ClientFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		return gmail.NewClient(ctx, conf, tok)
	}

	feedService := service.NewFeedService(newsletterRepo, settingsStore)
	jobs := service.NewJobRegistry(newsletterRepo, workQueue, kickstart, notifier, listerFor, service.IngestorConfig{
		BackfillPages:  cfg.Ingest.BackfillPages,
		BackfillTarget: cfg.Ingest.BackfillTarget,
		GmailBatch:     int64(cfg.Ingest.GmailBatch),
		Query:          cfg.Ingest.Query,
	})
	go jobs.RunProgressListener(logger.WithContext(ctx, appLogger))

	router := api.SetupRouter(api.Deps{
		Feed:      feedService,
		Repo:      newsletterRepo,
		Overrides: overrideRepo,
		Jobs:      jobs,
		Notifier:  notifier,
		Settings:  settingsStore,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
