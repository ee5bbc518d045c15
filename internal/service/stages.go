package service

import "fmt"

// Pipeline stage names used in StageError and logs.
const (
	StageFetch     = "fetch"
	StageSummarize = "summarize"
	StageKeyword   = "keyword"
	StageImage     = "image"
	StageClassify  = "classify"
	StagePersist   = "persist"
)

// StageError tags an error with the pipeline stage that produced it, so
// partial-failure handling can tell stages apart without string matching.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with its originating stage.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
