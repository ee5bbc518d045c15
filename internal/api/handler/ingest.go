package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wrprafra/newsletter-project/internal/api/middleware"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/service"
)

const ssePingInterval = 15 * time.Second

// IngestHandler handles on-demand ingest jobs and their event streams.
type IngestHandler struct {
	jobs     *service.JobRegistry
	notifier *queue.Notifier
}

// NewIngestHandler creates a new ingest handler.
// Parameters:
//   - jobs: job registry.
//   - notifier: Redis pub/sub for per-item updates.
// Returns:
//   - *IngestHandler: initialized handler.
func NewIngestHandler(jobs *service.JobRegistry, notifier *queue.Notifier) *IngestHandler {
	return &IngestHandler{
		jobs:     jobs,
		notifier: notifier,
	}
}

// Pull handles POST /api/ingest/pull. Always answers 202: either a new
// job started or the user's existing one is returned.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IngestHandler) Pull(c *gin.Context) {
	userID := middleware.UserID(c)

	job, err := h.jobs.StartIngest(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrJobAlreadyRunning) {
			c.JSON(http.StatusAccepted, gin.H{
				"status": "already_running",
				"job":    job,
			})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("ingest start failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start ingest"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status": "started",
		"job":    job,
	})
}

// Status handles GET /api/ingest/status/:job_id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IngestHandler) Status(c *gin.Context) {
	jobID := c.Param("job_id")
	job, ok := h.jobs.Get(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Events handles GET /api/ingest/events/:job_id as a Server-Sent Events
// stream. Per-item updates arrive over Redis pub/sub, progress snapshots
// come from the registry, and the stream closes once the job reaches a
// terminal state.
// Parameters:
//   - c: Gin request context.
// Returns: none (streams SSE frames).
func (h *IngestHandler) Events(c *gin.Context) {
	jobID := c.Param("job_id")
	job, ok := h.jobs.Get(jobID)
	if !ok || job.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	sub := h.notifier.SubscribeUpdates(ctx, jobID)
	defer sub.Close()
	updates := sub.Channel()

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	writeEvent(c, "progress", job)
	if !job.Active() {
		writeEvent(c, "end", job)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-updates:
			if !open {
				return
			}
			var update queue.ItemUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				middleware.GetLogger(c).WithError(err).Debug("dropping malformed update")
				continue
			}
			writeEvent(c, "item", update)

			snapshot, ok := h.jobs.Get(jobID)
			if !ok {
				return
			}
			writeEvent(c, "progress", snapshot)
			if !snapshot.Active() {
				writeEvent(c, "end", snapshot)
				return
			}
		case <-ticker.C:
			snapshot, ok := h.jobs.Get(jobID)
			if !ok {
				return
			}
			writeEvent(c, "progress", snapshot)
			if !snapshot.Active() {
				writeEvent(c, "end", snapshot)
				return
			}
		}
	}
}

// writeEvent flushes one SSE frame. Payloads that fail to encode are
// dropped rather than breaking the stream.
func writeEvent(c *gin.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.SSEvent(event, string(data))
	c.Writer.Flush()
}
