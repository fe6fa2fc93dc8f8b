package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

type fakeJobs struct {
	cutoff time.Time
	pruned int64
}

func (f *fakeJobs) Create(ctx context.Context, job *domain.GenerationJob) error { return nil }

func (f *fakeJobs) UpdateStatus(ctx context.Context, jobID string, status domain.JobState, resultURL, errMsg string) error {
	return nil
}

func (f *fakeJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	return nil, nil
}

func (f *fakeJobs) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.pruned, nil
}

type fakeResetter struct{ calls int }

func (f *fakeResetter) ResetAll(ctx context.Context) error {
	f.calls++
	return nil
}

type fakeEvicter struct {
	maxIdle time.Duration
	calls   int
}

func (f *fakeEvicter) EvictIdleSessions(maxIdle time.Duration) int {
	f.maxIdle = maxIdle
	f.calls++
	return 2
}

func TestPruneJobsUsesRetentionCutoff(t *testing.T) {
	jobs := &fakeJobs{pruned: 3}
	s := NewScheduler(jobs, &fakeResetter{}, nil, 48*time.Hour, zerolog.Nop())

	s.pruneJobs()
	want := time.Now().Add(-48 * time.Hour)
	if diff := jobs.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %v, want about %v", jobs.cutoff, want)
	}
}

func TestEvictSessionsRunsWithConfiguredIdleWindow(t *testing.T) {
	evicter := &fakeEvicter{}
	s := NewScheduler(&fakeJobs{}, &fakeResetter{}, evicter, 48*time.Hour, zerolog.Nop())

	s.evictSessions()
	if evicter.calls != 1 {
		t.Fatalf("evict calls = %d, want 1", evicter.calls)
	}
	if evicter.maxIdle != sessionMaxIdle {
		t.Fatalf("maxIdle = %v, want %v", evicter.maxIdle, sessionMaxIdle)
	}
}

func TestEvictSessionsToleratesNilEvicter(t *testing.T) {
	s := NewScheduler(&fakeJobs{}, &fakeResetter{}, nil, 48*time.Hour, zerolog.Nop())
	s.evictSessions()
}
