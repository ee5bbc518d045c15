// Command requeue pushes stuck records back onto the work queue. Use it
// after an outage or a bad deploy left rows unenriched or incomplete.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/wrprafra/newsletter-project/internal/config"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
)

func main() {
	userID := flag.String("user", "", "restrict to one user id (default all users)")
	limit := flag.Int("limit", 0, "maximum records to requeue (0 means no cap)")
	incomplete := flag.Bool("incomplete", false, "also requeue enriched records that never completed")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Logging.Level,
		Format:      "text",
		ServiceName: "newsletter-requeue",
	})
	logger.SetDefault(appLogger)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	ctx := context.Background()
	rdb, err := queue.NewClient(ctx, &cfg.Redis)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer rdb.Close()

	newsletterRepo := repository.NewNewsletterRepository(db)
	workQueue := queue.NewQueue(rdb)

	rows, err := newsletterRepo.ListUnenriched(ctx, *userID, *incomplete, *limit)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to list records")
	}

	pushed := 0
	for _, row := range rows {
		// The worker skips enriched records, so incomplete ones must be
		// reset before they can go around again.
		if row.Enriched {
			err := newsletterRepo.UpdateFields(ctx, row.EmailID, row.UserID, map[string]interface{}{"enriched": false})
			if err != nil {
				appLogger.WithError(err).WithField(logger.FieldEmailID, row.EmailID).Warn("reset failed")
				continue
			}
		}
		entry := domain.QueueEntry{EmailID: row.EmailID, UserID: row.UserID}
		if err := workQueue.Push(ctx, entry); err != nil {
			appLogger.WithError(err).WithField(logger.FieldEmailID, row.EmailID).Warn("push failed")
			continue
		}
		pushed++
	}

	appLogger.WithFields(logger.Fields{
		"candidates":      len(rows),
		logger.FieldCount: pushed,
	}).Info("requeue finished")
}
