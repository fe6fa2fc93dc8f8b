package domain

import (
	"context"
	"time"
)

// GenerationJobRepository persists the advisory archive of submitted jobs.
type GenerationJobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	UpdateStatus(ctx context.Context, jobID string, status JobState, resultURL, errMsg string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]GenerationJob, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
