package domain

import "time"

// JobState enumerates the lifecycle of one tracked video-generation job.
type JobState string

const (
	JobStateIdle      JobState = "idle"
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether the state admits no further transitions short of
// an explicit reset or a fresh submission.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// GenerationJob is the archived record of a submitted video-generation job.
// The archive is advisory history; the live poll loop never reads it back.
type GenerationJob struct {
	ID           string
	UserID       string
	Prompt       string
	AspectRatio  string
	Duration     int
	SceneID      string
	Status       JobState
	ResultURL    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
