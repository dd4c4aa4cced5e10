package model

import "time"

// JobStatus is the lifecycle state of a training job.
type JobStatus string

// Training job states.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// TrainingJob is one asynchronous training request and its outcome.
type TrainingJob struct {
	ID           string     `json:"id"`
	Seasons      []int      `json:"seasons"`
	Status       JobStatus  `json:"status"`
	ModelVersion string     `json:"model_version,omitempty"`
	Accuracy     float64    `json:"accuracy,omitempty"`
	Error        string     `json:"error,omitempty"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j TrainingJob) Done() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
