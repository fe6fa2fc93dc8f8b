// Package videogen tracks long-running video-generation jobs executed by the
// external gateway. A Tracker owns at most one job at a time: submit, poll
// on a fixed interval until a terminal signal or the attempt ceiling, then
// surface the outcome and best-effort update the associated scene record.
package videogen

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 120
)

// SceneUpdater applies the terminal outcome of a job to the scene record it
// was submitted against. Failures here never affect the job's own state.
type SceneUpdater interface {
	MarkVideoReady(ctx context.Context, sceneID, videoURL string) error
	MarkVideoFailed(ctx context.Context, sceneID, reason string) error
}

// Snapshot is the externally visible state of the tracked job.
type Snapshot struct {
	State         domain.JobState `json:"state"`
	JobID         string          `json:"job_id,omitempty"`
	Progress      int             `json:"progress"`
	RemoteStatus  string          `json:"remote_status,omitempty"`
	ResultURL     string          `json:"result_url,omitempty"`
	EstimatedTime string          `json:"estimated_time,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// SubmitParams are the caller-supplied job parameters.
type SubmitParams struct {
	Prompt         string
	ImageReference string
	Duration       int
	AspectRatio    string
	SceneID        string
}

// Tracker drives the poll loop for one job. The generation counter fences
// every state mutation: a loop (or an in-flight status check) whose
// generation has been superseded by Reset or a new Submit cannot touch the
// snapshot.
type Tracker struct {
	gateway     Gateway
	scenes      SceneUpdater // optional
	logger      zerolog.Logger
	interval    time.Duration
	maxAttempts int

	// OnTerminal, when set, observes every terminal transition. Used to keep
	// the job archive current; errors are the observer's problem.
	OnTerminal func(jobID string, snap Snapshot)

	mu   sync.Mutex
	snap Snapshot
	gen  uint64
	stop chan struct{} // non-nil while a poll loop is active
}

// NewTracker builds a Tracker. Zero interval or attempts select the
// defaults (5s, 120 attempts — a ten-minute ceiling).
func NewTracker(gateway Gateway, scenes SceneUpdater, logger zerolog.Logger, interval time.Duration, maxAttempts int) *Tracker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Tracker{
		gateway:     gateway,
		scenes:      scenes,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
		snap:        Snapshot{State: domain.JobStateIdle},
	}
}

// Snapshot returns the current job state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Submit validates entitlement, forwards the job to the gateway and starts
// the poll loop. Entitlement rejection fails synchronously with a
// domain.UpgradeRequiredError and never creates a timer; transport failure
// records the failed state without polling. A submission while a previous
// loop is active cancels that loop first, so at most one loop runs per
// tracker.
func (t *Tracker) Submit(ctx context.Context, sess domain.Session, p SubmitParams) (*SubmitResponse, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, domain.ErrInvalidPrompt
	}
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if !sess.Entitled() {
		return nil, &domain.UpgradeRequiredError{}
	}

	t.mu.Lock()
	t.cancelLoopLocked()
	t.snap = Snapshot{State: domain.JobStatePending}
	gen := t.gen
	t.mu.Unlock()

	resp, err := t.gateway.SubmitJob(ctx, SubmitRequest{
		Prompt:             p.Prompt,
		ImageReference:     p.ImageReference,
		Duration:           p.Duration,
		AspectRatio:        p.AspectRatio,
		AssociatedRecordID: p.SceneID,
	})
	if err != nil {
		if domain.IsUpgradeRequired(err) {
			// The gateway enforces entitlement too; mirror the synchronous
			// rejection path and leave the tracker idle.
			t.apply(gen, func(s *Snapshot) { *s = Snapshot{State: domain.JobStateIdle} })
			return nil, err
		}
		t.apply(gen, func(s *Snapshot) {
			*s = Snapshot{State: domain.JobStateFailed, Error: err.Error()}
		})
		return nil, err
	}

	t.mu.Lock()
	if t.gen != gen {
		// Reset or a newer Submit won the race; do not start a loop for the
		// superseded job.
		t.mu.Unlock()
		return resp, nil
	}
	t.snap = Snapshot{
		State:         domain.JobStateRunning,
		JobID:         resp.JobID,
		EstimatedTime: resp.EstimatedTime,
	}
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.poll(gen, stop, resp.JobID, p.SceneID)
	return resp, nil
}

// CheckStatus performs a single status check without touching tracker state.
func (t *Tracker) CheckStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	return t.gateway.CheckStatus(ctx, jobID)
}

// Reset cancels any active poll loop and returns the tracker to idle. It is
// idempotent, and once it returns no mutation from the old job can land.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLoopLocked()
	t.snap = Snapshot{State: domain.JobStateIdle}
}

func (t *Tracker) cancelLoopLocked() {
	t.gen++
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// apply runs fn against the snapshot only if gen is still current.
func (t *Tracker) apply(gen uint64, fn func(*Snapshot)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}
	fn(&t.snap)
	return true
}

// poll drives the tick schedule. Ticks fire from the ticker alone, never
// behind an in-flight status call: each check runs detached, so a hung
// request cannot stall the attempt counter and the ceiling fires on
// schedule no matter what the gateway does.
func (t *Tracker) poll(gen uint64, stop chan struct{}, jobID, sceneID string) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if attempt > t.maxAttempts {
			t.mu.Lock()
			if t.gen != gen {
				t.mu.Unlock()
				return
			}
			t.snap.State = domain.JobStateFailed
			t.snap.Error = domain.ErrPollTimeout.Error()
			snap := t.snap
			// Retire the generation so checks still in flight become no-ops.
			t.gen++
			t.stop = nil
			t.mu.Unlock()
			t.logger.Error().Str("job_id", jobID).Int("attempts", t.maxAttempts).Msg("videogen: poll ceiling reached")
			t.notifyTerminal(jobID, sceneID, snap)
			return
		}

		go t.checkOnce(gen, jobID, sceneID, attempt)
	}
}

// checkOnce performs one detached status check. Responses resolve
// last-write-wins under the generation fence; a terminal response retires
// the generation and releases the tick loop.
func (t *Tracker) checkOnce(gen uint64, jobID, sceneID string, attempt int) {
	status, err := t.gateway.CheckStatus(context.Background(), jobID)
	if err != nil {
		// Transient transport errors never abort an otherwise healthy job;
		// the tick schedule runs regardless.
		t.logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("videogen: status check failed")
		return
	}

	t.mu.Lock()
	if t.gen != gen {
		// Superseded by Reset, a newer Submit, a terminal response or the
		// ceiling; this response is stale.
		t.mu.Unlock()
		return
	}
	t.snap.Progress = status.Progress
	t.snap.RemoteStatus = strings.ToLower(status.Status)
	terminal := false
	switch status.Status {
	case RemoteSucceeded:
		t.snap.State = domain.JobStateSucceeded
		t.snap.Progress = 100
		t.snap.ResultURL = status.VideoURL
		terminal = true
	case RemoteFailed:
		t.snap.State = domain.JobStateFailed
		t.snap.Error = status.Failure
		if t.snap.Error == "" {
			t.snap.Error = "video generation failed"
		}
		terminal = true
	}
	snap := t.snap
	if terminal {
		t.gen++
		if t.stop != nil {
			close(t.stop)
			t.stop = nil
		}
	}
	t.mu.Unlock()

	if terminal {
		t.notifyTerminal(jobID, sceneID, snap)
	}
}

// notifyTerminal applies best-effort side updates for a terminal job: the
// associated scene record and any archive observer. Neither can change the
// job's own terminal state.
func (t *Tracker) notifyTerminal(jobID, sceneID string, snap Snapshot) {
	if t.OnTerminal != nil {
		t.OnTerminal(jobID, snap)
	}
	if t.scenes == nil || sceneID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var err error
	if snap.State == domain.JobStateSucceeded {
		err = t.scenes.MarkVideoReady(ctx, sceneID, snap.ResultURL)
	} else {
		err = t.scenes.MarkVideoFailed(ctx, sceneID, snap.Error)
	}
	if err != nil {
		t.logger.Error().Err(err).Str("job_id", jobID).Str("scene_id", sceneID).Msg("videogen: scene update failed")
	}
}
