// Package maintenance runs the periodic housekeeping nobody should have to
// trigger by hand: pruning terminal archived jobs past their retention
// window, dropping idle per-session server state, and resetting the
// device-local advisory counters each day.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

// AdvisoryResetter clears the cosmetic per-device counters.
type AdvisoryResetter interface {
	ResetAll(ctx context.Context) error
}

// SessionEvicter drops per-session server state that has gone idle.
type SessionEvicter interface {
	EvictIdleSessions(maxIdle time.Duration) int
}

// sessionMaxIdle is how long a session may go without a request before its
// in-memory state is dropped. Persistent records are unaffected.
const sessionMaxIdle = 24 * time.Hour

// Scheduler wires the cron entries. Start is non-blocking; Stop waits for
// any running entry to finish.
type Scheduler struct {
	cron      *cron.Cron
	jobs      domain.GenerationJobRepository
	advisory  AdvisoryResetter
	sessions  SessionEvicter
	retention time.Duration
	logger    zerolog.Logger
}

func NewScheduler(jobs domain.GenerationJobRepository, advisory AdvisoryResetter, sessions SessionEvicter, retention time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		jobs:      jobs,
		advisory:  advisory,
		sessions:  sessions,
		retention: retention,
		logger:    logger,
	}
}

// Start registers and launches the cron entries.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.pruneJobs); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.evictSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@daily", s.resetAdvisory); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Dur("retention", s.retention).Msg("maintenance: scheduler started")
	return nil
}

// Stop halts scheduling and waits for in-flight entries.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) pruneJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().Add(-s.retention)
	pruned, err := s.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("maintenance: prune failed")
		return
	}
	if pruned > 0 {
		s.logger.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("maintenance: pruned terminal jobs")
	}
}

func (s *Scheduler) evictSessions() {
	if s.sessions == nil {
		return
	}
	if evicted := s.sessions.EvictIdleSessions(sessionMaxIdle); evicted > 0 {
		s.logger.Info().Int("evicted", evicted).Msg("maintenance: dropped idle sessions")
	}
}

func (s *Scheduler) resetAdvisory() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.advisory.ResetAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("maintenance: advisory reset failed")
		return
	}
	s.logger.Info().Msg("maintenance: advisory counters reset")
}
