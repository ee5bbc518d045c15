package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wrprafra/newsletter-project/internal/credentials"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/logger"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
)

// ErrJobAlreadyRunning means the user already has an active ingest job.
var ErrJobAlreadyRunning = errors.New("ingest job already running for user")

// JobRegistry tracks on-demand ingest jobs in memory and drives them to
// completion from worker progress messages. One active job per user.
type JobRegistry struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	byUser map[string]string

	repo      *repository.NewsletterRepository
	queue     *queue.Queue
	kickstart *queue.Kickstart
	notifier  *queue.Notifier
	listerFor ListerFactory
	cfg       IngestorConfig
}

// NewJobRegistry creates a JobRegistry.
// Parameters:
//   - repo: newsletter repository.
//   - q: work queue producer.
//   - kickstart: per-user suppression flags for the background ingestor.
//   - notifier: progress pub/sub.
//   - listerFor: per-user Gmail lister factory.
//   - cfg: shares the ingestor's page and target budget.
// Returns:
//   - *JobRegistry: ready registry.
func NewJobRegistry(repo *repository.NewsletterRepository, q *queue.Queue, kickstart *queue.Kickstart, notifier *queue.Notifier, listerFor ListerFactory, cfg IngestorConfig) *JobRegistry {
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
	return &JobRegistry{
		jobs:      make(map[string]*domain.Job),
		byUser:    make(map[string]string),
		repo:      repo,
		queue:     q,
		kickstart: kickstart,
		notifier:  notifier,
		listerFor: listerFor,
		cfg:       cfg,
	}
}

// StartIngest begins a bounded on-demand ingest for the user. A second
// request while one is active returns the existing job and
// ErrJobAlreadyRunning.
// Parameters:
//   - ctx: request context; the job itself runs detached.
//   - userID: user to ingest for.
// Returns:
//   - domain.Job: snapshot of the new or existing job.
//   - error: ErrJobAlreadyRunning when a job is active.
func (r *JobRegistry) StartIngest(ctx context.Context, userID string) (domain.Job, error) {
	r.mu.Lock()
	if jobID, ok := r.byUser[userID]; ok {
		if job := r.jobs[jobID]; job != nil && job.Active() {
			snapshot := *job
			r.mu.Unlock()
			return snapshot, ErrJobAlreadyRunning
		}
	}

	job := &domain.Job{
		ID:     uuid.NewString(),
		UserID: userID,
		State:  domain.JobStateQueued,
	}
	r.jobs[job.ID] = job
	r.byUser[userID] = job.ID
	snapshot := *job
	r.mu.Unlock()

	// Detach from the request: the job outlives the HTTP call.
	go r.run(context.WithoutCancel(ctx), job.ID, userID)
	return snapshot, nil
}

// Get returns a snapshot of a job.
func (r *JobRegistry) Get(jobID string) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

func (r *JobRegistry) run(ctx context.Context, jobID, userID string) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "jobs",
		logger.FieldJobID:     jobID,
		logger.FieldUserID:    userID,
	})

	if err := r.kickstart.Activate(ctx, userID); err != nil {
		log.WithError(err).Debug("failed to set kickstart flag")
	}
	defer func() {
		if err := r.kickstart.Clear(ctx, userID); err != nil {
			log.WithError(err).Debug("failed to clear kickstart flag")
		}
	}()

	lister, err := r.listerFor(ctx, userID)
	if err != nil {
		reason := "internal_error"
		if errors.Is(err, credentials.ErrAuthRequired) {
			reason = "auth_required"
		}
		log.WithError(err).Warn("on-demand ingest failed to start")
		r.fail(jobID, reason)
		return
	}

	var refs []gmail.MessageRef
	pageToken := ""
	for page := 0; page < r.cfg.BackfillPages && len(refs) < r.cfg.BackfillTarget; page++ {
		lp, err := lister.List(ctx, r.cfg.Query, pageToken, r.cfg.GmailBatch)
		if err != nil {
			log.WithError(err).Warn("on-demand list failed")
			r.fail(jobID, "gmail_unavailable")
			return
		}
		refs = append(refs, lp.IDs...)
		pageToken = lp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	if len(refs) > r.cfg.BackfillTarget {
		refs = refs[:r.cfg.BackfillTarget]
	}

	ids := make([]string, len(refs))
	byID := make(map[string]gmail.MessageRef, len(refs))
	for n, ref := range refs {
		ids[n] = ref.ID
		byID[ref.ID] = ref
	}
	fresh, err := r.repo.FilterNewIDs(ctx, userID, ids)
	if err != nil {
		log.WithError(err).Warn("on-demand id filter failed")
		r.fail(jobID, "storage_unavailable")
		return
	}

	queued := 0
	for _, id := range fresh {
		ref := byID[id]
		if err := r.repo.CreateStub(ctx, ref.ID, userID, ref.ThreadID); err != nil {
			log.WithError(err).WithField(logger.FieldEmailID, ref.ID).Warn("stub create failed")
			continue
		}
		if err := r.queue.Push(ctx, domain.QueueEntry{EmailID: ref.ID, UserID: userID, JobID: jobID}); err != nil {
			log.WithError(err).WithField(logger.FieldEmailID, ref.ID).Warn("push failed")
			continue
		}
		queued++
	}

	r.markEnqueued(jobID, queued)
	log.WithField(logger.FieldCount, queued).Info("on-demand ingest enqueued")
}

// markEnqueued records the final queued total. Workers may have ticked
// entries while enqueueing was still in flight, so a job whose counter
// already caught up completes here instead of staying running forever.
func (r *JobRegistry) markEnqueued(jobID string, queued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[jobID]
	if job == nil {
		return
	}
	job.Total = queued
	if queued == 0 || job.Done >= queued {
		job.State = domain.JobStateDone
	} else {
		job.State = domain.JobStateRunning
	}
}

func (r *JobRegistry) fail(jobID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job := r.jobs[jobID]; job != nil {
		job.State = domain.JobStateFailed
		job.Reason = reason
	}
}

// Tick records one finished item for a job, completing it when the
// counter reaches the total.
// Parameters:
//   - jobID: job the item belonged to.
//   - failed: whether the item ended in a failure state.
func (r *JobRegistry) Tick(jobID string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[jobID]
	if job == nil {
		return
	}
	job.Done++
	if failed {
		job.Errors++
	}
	if job.State == domain.JobStateRunning && job.Done >= job.Total {
		job.State = domain.JobStateDone
	}
}

// RunProgressListener consumes worker progress messages until ctx is
// canceled. Run it once per API process.
// Parameters:
//   - ctx: cancellation signal.
func (r *JobRegistry) RunProgressListener(ctx context.Context) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "jobs")
	sub := r.notifier.SubscribeProgress(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if jobID := queue.JobIDFromProgressChannel(msg.Channel); jobID != "" {
				r.Tick(jobID, msg.Payload == queue.ProgressFailed)
			} else {
				log.WithField("channel", msg.Channel).Debug("ignoring unknown progress channel")
			}
		}
	}
}
