package domain

// JobState represents the lifecycle state of an on-demand ingest job.
// Values include JobStateQueued, JobStateRunning, JobStateDone, and JobStateFailed.
type JobState string

const (
	JobStateQueued  JobState = "queued"
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)

// Job tracks progress of an on-demand ingest. Jobs live only in the API
// process; a restart forgets them and clients must re-trigger.
type Job struct {
	ID     string   `json:"job_id"`
	UserID string   `json:"user_id"`
	State  JobState `json:"state"`
	Total  int      `json:"total"`
	Done   int      `json:"done"`
	Errors int      `json:"errors"`
	Reason string   `json:"reason,omitempty"`
}

// Active reports whether the job still occupies the per-user slot.
func (j *Job) Active() bool {
	return j.State == JobStateQueued || j.State == JobStateRunning
}

// QueueEntry is the unit of work passed from ingestor to worker over the
// shared list. JobID is set only for on-demand ingests.
type QueueEntry struct {
	EmailID string `json:"email_id"`
	UserID  string `json:"user_id"`
	JobID   string `json:"job_id,omitempty"`
}
