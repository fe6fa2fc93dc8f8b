package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/sqlinline"
)

// GenerationJobRepositoryPG implements domain.GenerationJobRepository.
type GenerationJobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationJobRepository creates a job archive repository backed by PostgreSQL.
func NewGenerationJobRepository(sql infra.SQLExecutor) *GenerationJobRepositoryPG {
	return &GenerationJobRepositoryPG{sql: sql}
}

// Create inserts a new archived job record.
func (r *GenerationJobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.UserID,
		job.Prompt,
		job.AspectRatio,
		job.Duration,
		job.SceneID,
		job.Status,
	)
	if err != nil {
		return fmt.Errorf("insert generation job: %w", err)
	}
	return nil
}

// UpdateStatus records a terminal or intermediate status transition. Empty
// resultURL and errMsg leave the stored values untouched.
func (r *GenerationJobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobState, resultURL, errMsg string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationJobStatus, jobID, status, resultURL, errMsg)
	if err != nil {
		return fmt.Errorf("update generation job status: %w", err)
	}
	return nil
}

// ListByUser returns the user's archived jobs newest-first.
func (r *GenerationJobRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationJobs, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generation jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		var job domain.GenerationJob
		if err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.Prompt,
			&job.AspectRatio,
			&job.Duration,
			&job.SceneID,
			&job.Status,
			&job.ResultURL,
			&job.ErrorMessage,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generation job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list generation jobs: %w", err)
	}
	return jobs, nil
}

// DeleteTerminalBefore removes succeeded and failed jobs last touched before
// the cutoff, returning the number of rows pruned.
func (r *GenerationJobRepositoryPG) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteTerminalJobsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune generation jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.GenerationJobRepository = (*GenerationJobRepositoryPG)(nil)
