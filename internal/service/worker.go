package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/wrprafra/newsletter-project/internal/ai"
	"github.com/wrprafra/newsletter-project/internal/credentials"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/images"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
)

// Mailbox fetches full messages for one authenticated user.
type Mailbox interface {
	Get(ctx context.Context, id string) (*gmailapi.Message, error)
}

// MailboxFactory builds a Mailbox authenticated as the given user.
type MailboxFactory func(ctx context.Context, userID string) (Mailbox, error)

// Enricher generates AI enrichment for email content.
type Enricher interface {
	Summarize(ctx context.Context, content string) ai.Summary
	Keyword(ctx context.Context, content string) string
	Classify(ctx context.Context, content string) ai.Classification
}

// ImageResolver turns a keyword into an image URL and accent color.
type ImageResolver interface {
	Resolve(ctx context.Context, keyword string) (string, string)
}

// WorkQueue is the consumer side of the shared work list.
type WorkQueue interface {
	BPop(ctx context.Context, timeout time.Duration) (*domain.QueueEntry, error)
}

// ProgressPublisher announces per-item completion for on-demand jobs.
type ProgressPublisher interface {
	PublishUpdate(ctx context.Context, jobID string, update queue.ItemUpdate) error
	PublishProgress(ctx context.Context, jobID string, failed bool) error
}

// WorkerConfig tunes the enrichment worker.
type WorkerConfig struct {
	HeavySlots int
	PopTimeout time.Duration
	ThreadMode string // "skip" surfaces one email per thread
}

// Worker consumes the queue and runs the enrichment pipeline. Each entry
// processes in its own goroutine; a weighted semaphore caps how many run
// the heavy AI and image stages at once.
type Worker struct {
	repo       *repository.NewsletterRepository
	overrides  *repository.OverrideRepository
	queue      WorkQueue
	mailboxFor MailboxFactory
	enricher   Enricher
	resolver   ImageResolver
	publisher  ProgressPublisher
	heavy      *semaphore.Weighted
	cfg        WorkerConfig
}

// NewWorker creates a Worker.
// Parameters:
//   - repo: newsletter repository.
//   - overrides: domain type override repository.
//   - q: work queue consumer.
//   - mailboxFor: per-user mailbox factory.
//   - enricher: AI enrichment client.
//   - resolver: image resolver.
//   - publisher: job progress publisher, may be nil.
//   - cfg: worker tuning.
// Returns:
//   - *Worker: ready worker.
func NewWorker(repo *repository.NewsletterRepository, overrides *repository.OverrideRepository, q WorkQueue, mailboxFor MailboxFactory, enricher Enricher, resolver ImageResolver, publisher ProgressPublisher, cfg WorkerConfig) *Worker {
	if cfg.HeavySlots <= 0 {
		cfg.HeavySlots = 3
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.ThreadMode == "" {
		cfg.ThreadMode = "skip"
	}
	return &Worker{
		repo:       repo,
		overrides:  overrides,
		queue:      q,
		mailboxFor: mailboxFor,
		enricher:   enricher,
		resolver:   resolver,
		publisher:  publisher,
		heavy:      semaphore.NewWeighted(int64(cfg.HeavySlots)),
		cfg:        cfg,
	}
}

// Run consumes the queue until ctx is canceled, then waits for in-flight
// entries to finish.
// Parameters:
//   - ctx: cancellation signal for the loop.
// Returns:
//   - error: ctx.Err() after shutdown.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "worker")
	log.Info("worker started")

	var wg sync.WaitGroup
	for {
		entry, err := w.queue.BPop(ctx, w.cfg.PopTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) {
				if ctx.Err() != nil {
					break
				}
				continue
			}
			if ctx.Err() != nil {
				break
			}
			log.WithError(err).Warn("queue pop failed")
			continue
		}

		wg.Add(1)
		go func(e domain.QueueEntry) {
			defer wg.Done()
			w.Process(ctx, e)
		}(*entry)
	}

	wg.Wait()
	log.Info("worker stopped")
	return ctx.Err()
}

// Process runs the enrichment pipeline for one entry. Errors never
// escape: every failure mode either leaves the record requeue-able or
// marks a terminal state, and job progress is published regardless.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: queue entry to process.
func (w *Worker) Process(ctx context.Context, entry domain.QueueEntry) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "worker",
		logger.FieldEmailID:   entry.EmailID,
		logger.FieldUserID:    entry.UserID,
		logger.FieldJobID:     entry.JobID,
	})
	start := time.Now()
	failed := false
	defer func() {
		w.announce(ctx, entry, failed)
		log.WithField(logger.FieldDurationMS, time.Since(start).Milliseconds()).Debug("entry processed")
	}()

	rec, err := w.repo.GetByID(ctx, entry.EmailID, entry.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("no record for queue entry, dropping")
			return
		}
		log.WithError(err).Error("record lookup failed")
		failed = true
		return
	}
	if rec.Enriched {
		log.Debug("already enriched, skipping")
		return
	}

	mailbox, err := w.mailboxFor(ctx, entry.UserID)
	if err != nil {
		if errors.Is(err, credentials.ErrAuthRequired) {
			log.Warn("user needs to re-authenticate, leaving entry unenriched")
		} else {
			log.WithError(err).Error("mailbox construction failed")
		}
		failed = true
		return
	}

	msg, err := mailbox.Get(ctx, entry.EmailID)
	if err != nil {
		if errors.Is(err, gmail.ErrMessageNotFound) {
			// The message is gone upstream; nothing will ever enrich it.
			w.write(ctx, log, entry, map[string]interface{}{
				"enriched":   true,
				"is_deleted": true,
			})
			return
		}
		log.WithError(err).Error("message fetch failed")
		failed = true
		return
	}

	if w.cfg.ThreadMode == "skip" && msg.ThreadId != "" {
		dup, err := w.repo.ThreadExists(ctx, entry.UserID, msg.ThreadId, entry.EmailID)
		if err == nil && dup {
			w.write(ctx, log, entry, map[string]interface{}{
				"enriched":    true,
				"is_complete": false,
				"thread_id":   msg.ThreadId,
			})
			log.Debug("thread already surfaced, hiding duplicate")
			return
		}
	}

	if gmail.HasLabel(msg, "SPAM") || gmail.HasLabel(msg, "TRASH") {
		w.write(ctx, log, entry, map[string]interface{}{
			"enriched":   true,
			"is_deleted": true,
			"thread_id":  msg.ThreadId,
		})
		log.Debug("spam or trash, marking deleted")
		return
	}

	headers := gmail.Headers(msg.Payload)
	senderName, senderEmail := gmail.ParseSender(headers["from"])
	htmlContent := gmail.ExtractHTML(msg.Payload)
	sourceDomain := gmail.RootDomain(gmail.SenderDomain(senderEmail))

	prelim := map[string]interface{}{
		"sender_name":       senderName,
		"sender_email":      senderEmail,
		"original_subject":  headers["subject"],
		"full_content_html": htmlContent,
		"source_domain":     sourceDomain,
		"thread_id":         msg.ThreadId,
		"rfc822_message_id": headers["message-id"],
	}
	if received := gmail.InternalTime(msg); received != nil {
		prelim["received_date"] = *received
	}
	if err := w.repo.UpdateFields(ctx, entry.EmailID, entry.UserID, prelim); err != nil {
		log.WithError(NewStageError(StagePersist, err)).Error("preliminary write failed")
		failed = true
		return
	}

	summary, imageURL, accent, classification := w.enrich(ctx, log, htmlContent)

	typeTag := classification.TypeTag
	if ov, err := w.overrides.Get(ctx, entry.UserID, sourceDomain); err == nil && ov != nil {
		typeTag = ov.TypeTag
	}

	complete := !summary.Placeholder && imageURL != ""
	if accent == "" {
		accent = images.DefaultAccent
	}

	final := map[string]interface{}{
		"ai_title":            summary.Title,
		"ai_summary_markdown": summary.SummaryMarkdown,
		"image_url":           imageURL,
		"accent_hex":          accent,
		"type_tag":            typeTag,
		"topic_tag":           classification.TopicTag,
		"enriched":            true,
		"is_complete":         complete,
	}
	if err := w.repo.UpdateFields(ctx, entry.EmailID, entry.UserID, final); err != nil {
		log.WithError(NewStageError(StagePersist, err)).Error("enrichment write failed")
		failed = true
		return
	}
	log.WithFields(logger.Fields{"complete": complete, "type_tag": typeTag}).Info("enriched")
}

// enrich runs the heavy stages under the semaphore. Each stage degrades
// independently; nothing here returns an error.
func (w *Worker) enrich(ctx context.Context, log *logger.Logger, htmlContent string) (ai.Summary, string, string, ai.Classification) {
	if err := w.heavy.Acquire(ctx, 1); err != nil {
		return ai.Summary{Placeholder: true}, "", "", ai.Classification{TypeTag: ai.DefaultType, TopicTag: ai.DefaultTopic}
	}
	defer w.heavy.Release(1)

	content := ai.HTMLToText(htmlContent)

	summary := w.enricher.Summarize(ctx, content)
	keyword := w.enricher.Keyword(ctx, content)
	imageURL, accent := w.resolver.Resolve(ctx, keyword)
	if imageURL == "" {
		log.WithError(NewStageError(StageImage, errors.New("no image resolved"))).WithField("keyword", keyword).Warn("image stage incomplete")
	}
	classification := w.enricher.Classify(ctx, content)

	return summary, imageURL, accent, classification
}

func (w *Worker) write(ctx context.Context, log *logger.Logger, entry domain.QueueEntry, fields map[string]interface{}) {
	if err := w.repo.UpdateFields(ctx, entry.EmailID, entry.UserID, fields); err != nil {
		log.WithError(NewStageError(StagePersist, err)).Error("status write failed")
	}
}

func (w *Worker) announce(ctx context.Context, entry domain.QueueEntry, failed bool) {
	if w.publisher == nil || entry.JobID == "" {
		return
	}
	update := queue.ItemUpdate{EmailID: entry.EmailID, UserID: entry.UserID, Failed: failed}
	if err := w.publisher.PublishUpdate(ctx, entry.JobID, update); err != nil {
		logger.FromContext(ctx).WithError(err).Debug("failed to publish item update")
	}
	if err := w.publisher.PublishProgress(ctx, entry.JobID, failed); err != nil {
		logger.FromContext(ctx).WithError(err).Debug("failed to publish progress")
	}
}
