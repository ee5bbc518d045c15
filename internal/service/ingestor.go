package service

import (
	"context"
	"errors"
	"time"

	"github.com/wrprafra/newsletter-project/internal/credentials"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
)

// Lister pages message ids for one authenticated user.
type Lister interface {
	List(ctx context.Context, query, pageToken string, max int64) (*gmail.ListPage, error)
}

// ListerFactory builds a Lister authenticated as the given user.
type ListerFactory func(ctx context.Context, userID string) (Lister, error)

// QueuePusher is the producer side of the shared work list.
type QueuePusher interface {
	Push(ctx context.Context, entry domain.QueueEntry) error
}

// SeenSet remembers recently enqueued ids so list pages overlapping the
// previous cycle skip cheaply.
type SeenSet interface {
	Mark(ctx context.Context, userID, emailID string) error
	IsSeen(ctx context.Context, userID, emailID string) (bool, error)
}

// IngestorConfig tunes the background poll loop.
type IngestorConfig struct {
	PollInterval   time.Duration
	BackfillPages  int
	BackfillTarget int
	GmailBatch     int64
	Query          string
	ThreadMode     string
}

// Ingestor discovers new Gmail messages for every known user and feeds
// the work queue. A Redis lock keeps it single-instance; a second copy
// exits cleanly instead of double-enqueueing.
type Ingestor struct {
	creds     *credentials.Store
	repo      *repository.NewsletterRepository
	queue     QueuePusher
	seen      SeenSet
	lock      *queue.Lock
	kickstart *queue.Kickstart
	listerFor ListerFactory
	cfg       IngestorConfig
}

// NewIngestor creates an Ingestor.
// Parameters:
//   - creds: credential store enumerating users.
//   - repo: newsletter repository.
//   - q: work queue producer.
//   - seen: recently-enqueued id sets.
//   - lock: single-instance lock.
//   - kickstart: per-user on-demand suppression flags.
//   - listerFor: per-user Gmail lister factory.
//   - cfg: poll tuning.
// Returns:
//   - *Ingestor: ready ingestor.
func NewIngestor(creds *credentials.Store, repo *repository.NewsletterRepository, q QueuePusher, seen SeenSet, lock *queue.Lock, kickstart *queue.Kickstart, listerFor ListerFactory, cfg IngestorConfig) *Ingestor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.BackfillPages <= 0 {
		cfg.BackfillPages = 4
	}
	if cfg.BackfillTarget <= 0 {
		cfg.BackfillTarget = 200
	}
	if cfg.GmailBatch <= 0 {
		cfg.GmailBatch = 100
	}
	if cfg.Query == "" {
		cfg.Query = "-in:spam -in:trash (newer_than:365d)"
	}
	if cfg.ThreadMode == "" {
		cfg.ThreadMode = "skip"
	}
	return &Ingestor{
		creds:     creds,
		repo:      repo,
		queue:     q,
		seen:      seen,
		lock:      lock,
		kickstart: kickstart,
		listerFor: listerFor,
		cfg:       cfg,
	}
}

// Run polls until ctx is canceled. When the lock is already held by
// another instance it returns nil immediately.
// Parameters:
//   - ctx: cancellation signal for the loop.
// Returns:
//   - error: nil on clean exit, lock errors otherwise.
func (i *Ingestor) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "ingestor")

	acquired, err := i.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		log.Info("another ingestor holds the lock, exiting")
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := i.lock.Release(releaseCtx); err != nil {
			log.WithError(err).Warn("failed to release lock")
		}
	}()
	log.Info("ingestor started")

	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := i.lock.Refresh(ctx); err != nil {
			log.WithError(err).Warn("failed to refresh lock")
		}
		i.runCycle(ctx)

		select {
		case <-ctx.Done():
			log.Info("ingestor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle reloads credentials and polls every user once. Per-user
// failures abort only that user's cycle.
func (i *Ingestor) runCycle(ctx context.Context) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "ingestor")

	creds, err := i.creds.Load(ctx)
	if err != nil {
		log.WithError(err).Error("failed to load credentials")
		return
	}

	for userID := range creds {
		if ctx.Err() != nil {
			return
		}
		if active, err := i.kickstart.Active(ctx, userID); err == nil && active {
			log.WithField(logger.FieldUserID, userID).Debug("on-demand ingest in flight, skipping user")
			continue
		}
		if err := i.pollUser(ctx, userID); err != nil {
			log.WithError(err).WithField(logger.FieldUserID, userID).Warn("user poll failed")
		}
	}
}

// pollUser walks list pages collecting new ids until the backfill target
// or page budget is exhausted.
func (i *Ingestor) pollUser(ctx context.Context, userID string) error {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "ingestor",
		logger.FieldUserID:    userID,
	})

	lister, err := i.listerFor(ctx, userID)
	if err != nil {
		if errors.Is(err, credentials.ErrAuthRequired) {
			log.Warn("user needs to re-authenticate, skipping")
			return nil
		}
		return err
	}

	collected := 0
	pageToken := ""
	for page := 0; page < i.cfg.BackfillPages && collected < i.cfg.BackfillTarget; page++ {
		lp, err := lister.List(ctx, i.cfg.Query, pageToken, i.cfg.GmailBatch)
		if err != nil {
			return err
		}

		for _, ref := range lp.IDs {
			if collected >= i.cfg.BackfillTarget {
				break
			}
			queued, err := i.enqueueIfNew(ctx, userID, ref)
			if err != nil {
				log.WithError(err).WithField(logger.FieldEmailID, ref.ID).Warn("enqueue failed")
				continue
			}
			if queued {
				collected++
			}
		}

		pageToken = lp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if collected > 0 {
		log.WithField(logger.FieldCount, collected).Info("enqueued new messages")
	}
	return nil
}

// enqueueIfNew applies the skip checks in order: seen set, thread
// duplicate, existing record. Seen sets are marked only after a
// successful push; a failed push leaves nothing shadowed and the
// surviving stub is recoverable through requeue.
func (i *Ingestor) enqueueIfNew(ctx context.Context, userID string, ref gmail.MessageRef) (bool, error) {
	seen, err := i.seen.IsSeen(ctx, userID, ref.ID)
	if err == nil && seen {
		return false, nil
	}

	if i.cfg.ThreadMode == "skip" && ref.ThreadID != "" {
		dup, err := i.repo.ThreadExists(ctx, userID, ref.ThreadID, "")
		if err == nil && dup {
			return false, nil
		}
	}

	exists, err := i.repo.Exists(ctx, ref.ID, userID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := i.repo.CreateStub(ctx, ref.ID, userID, ref.ThreadID); err != nil {
		return false, err
	}

	if err := i.queue.Push(ctx, domain.QueueEntry{EmailID: ref.ID, UserID: userID}); err != nil {
		return false, err
	}
	// A failed mark only costs a duplicate existence check next cycle.
	if err := i.seen.Mark(ctx, userID, ref.ID); err != nil {
		logger.FromContext(ctx).WithError(err).Debug("failed to mark seen sets")
	}
	return true, nil
}
