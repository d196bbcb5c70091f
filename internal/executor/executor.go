// Package executor is the hand-off boundary to the execution subsystem.
// Dispatch submits a job and walks away; the subsystem reports run status
// back through the API asynchronously.
package executor

import "context"

// Job is one execution request: which container image to run, the run row it
// reports against, and the fully merged bot configuration.
type Job struct {
	ImageRef string         `json:"image_ref"`
	RunID    string         `json:"run_id"`
	Config   map[string]any `json:"config"`
}

// Executor accepts jobs for asynchronous execution.
type Executor interface {
	Submit(ctx context.Context, job Job) error
}

// Nop discards every job. Used when running the API without a worker fleet
// attached.
type Nop struct{}

func (Nop) Submit(context.Context, Job) error { return nil }
