package logger

// Fields is a map of structured log fields.
type Fields map[string]interface{}

// Common field keys used across the services. Keeping them here avoids
// drift between the ingestor, worker and API logs.
const (
	FieldUserID     = "user_id"
	FieldJobID      = "job_id"
	FieldEmailID    = "email_id"
	FieldThreadID   = "thread_id"
	FieldRequestID  = "request_id"
	FieldComponent  = "component"
	FieldStage      = "stage"
	FieldDurationMS = "duration_ms"
	FieldCount      = "count"
	FieldQueue      = "queue"
	FieldStatusCode = "status_code"
)
