package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library/local"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library/remote"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/usage"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/videogen"
)

// Libraries bundles the six dual-backed record collections of one session.
type Libraries struct {
	Characters   *library.Library[domain.Character, *domain.Character]
	Environments *library.Library[domain.Environment, *domain.Environment]
	Brands       *library.Library[domain.Brand, *domain.Brand]
	Styles       *library.Library[domain.SceneStyle, *domain.SceneStyle]
	Photos       *library.Library[domain.Photo, *domain.Photo]
	Scenes       *library.Library[domain.Scene, *domain.Scene]
}

// sessionState is everything the server keeps per session key: the library
// bundle and the (at most one) tracked video job.
type sessionState struct {
	libs     *Libraries
	tracker  *videogen.Tracker
	lastSeen time.Time
}

// App is the handler container.
type App struct {
	SQL             infra.SQLExecutor
	KV              *local.KV
	Jobs            domain.GenerationJobRepository
	Advisory        *usage.Advisory
	Quota           *usage.Quota
	Gateway         videogen.Gateway
	Logger          infra.Logger
	PollInterval    time.Duration
	PollMaxAttempts int

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewApp wires the handler container.
func NewApp(sql infra.SQLExecutor, kv *local.KV, jobs domain.GenerationJobRepository, advisory *usage.Advisory, quota *usage.Quota, gateway videogen.Gateway, logger infra.Logger, pollInterval time.Duration, pollMaxAttempts int) *App {
	return &App{
		SQL:             sql,
		KV:              kv,
		Jobs:            jobs,
		Advisory:        advisory,
		Quota:           quota,
		Gateway:         gateway,
		Logger:          logger,
		PollInterval:    pollInterval,
		PollMaxAttempts: pollMaxAttempts,
		sessions:        make(map[string]*sessionState),
	}
}

// stateFor returns the session's state, building libraries and tracker on
// first sight. The local stores bind to the device the session first arrived
// from, which is also where pre-sign-in records live, so the first
// authenticated load migrates them.
func (a *App) stateFor(sess domain.Session) *sessionState {
	key := sess.Key()
	if key == "" {
		key = "anonymous"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.sessions[key]
	if !ok {
		libs := a.newLibraries(sess.DeviceID)
		st = &sessionState{libs: libs}
		st.tracker = videogen.NewTracker(a.Gateway, &sceneLibraryUpdater{lib: libs.Scenes}, a.Logger, a.PollInterval, a.PollMaxAttempts)
		st.tracker.OnTerminal = a.archiveTerminal
		a.sessions[key] = st
	}
	st.lastSeen = time.Now()

	if sess.Authenticated() {
		a.attachRemote(st.libs, sess.UserID)
	}
	return st
}

func (a *App) newLibraries(deviceID string) *Libraries {
	return &Libraries{
		Characters:   library.New[domain.Character](local.NewStore[domain.Character](a.KV, "characters", deviceID), a.Logger),
		Environments: library.New[domain.Environment](local.NewStore[domain.Environment](a.KV, "environments", deviceID), a.Logger),
		Brands:       library.New[domain.Brand](local.NewStore[domain.Brand](a.KV, "brands", deviceID), a.Logger),
		Styles:       library.New[domain.SceneStyle](local.NewStore[domain.SceneStyle](a.KV, "scene_styles", deviceID), a.Logger),
		Photos:       library.New[domain.Photo](local.NewStore[domain.Photo](a.KV, "photos", deviceID), a.Logger),
		Scenes:       library.New[domain.Scene](local.NewStore[domain.Scene](a.KV, "scenes", deviceID), a.Logger),
	}
}

// attachRemote idempotently points every library at the user's remote store.
func (a *App) attachRemote(libs *Libraries, userID string) {
	libs.Characters.SetRemoteOnce(func() library.Store[domain.Character] {
		return remote.NewStore[domain.Character](a.SQL, remote.TableCharacters, userID)
	})
	libs.Environments.SetRemoteOnce(func() library.Store[domain.Environment] {
		return remote.NewStore[domain.Environment](a.SQL, remote.TableEnvironments, userID)
	})
	libs.Brands.SetRemoteOnce(func() library.Store[domain.Brand] {
		return remote.NewStore[domain.Brand](a.SQL, remote.TableBrands, userID)
	})
	libs.Styles.SetRemoteOnce(func() library.Store[domain.SceneStyle] {
		return remote.NewStore[domain.SceneStyle](a.SQL, remote.TableSceneStyles, userID)
	})
	libs.Photos.SetRemoteOnce(func() library.Store[domain.Photo] {
		return remote.NewStore[domain.Photo](a.SQL, remote.TablePhotos, userID)
	})
	libs.Scenes.SetRemoteOnce(func() library.Store[domain.Scene] {
		return remote.NewStore[domain.Scene](a.SQL, remote.TableScenes, userID)
	})
}

// EvictIdleSessions drops session state untouched for longer than maxIdle
// so the registry stays bounded. Sessions whose tracker still has a live
// job are kept regardless of age. Returns the number evicted. Local SQLite
// records and remote rows survive eviction; the next request simply
// rebuilds the in-memory state.
func (a *App) EvictIdleSessions(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	a.mu.Lock()
	defer a.mu.Unlock()

	evicted := 0
	for key, st := range a.sessions {
		if st.lastSeen.After(cutoff) {
			continue
		}
		switch st.tracker.Snapshot().State {
		case domain.JobStatePending, domain.JobStateRunning:
			continue
		}
		delete(a.sessions, key)
		evicted++
	}
	return evicted
}

// archiveTerminal mirrors a terminal tracker transition into the job
// archive. Best-effort; archive rows never feed back into the poll loop.
func (a *App) archiveTerminal(jobID string, snap videogen.Snapshot) {
	if a.Jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Jobs.UpdateStatus(ctx, jobID, snap.State, snap.ResultURL, snap.Error); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job archive update failed")
	}
}

// sceneLibraryUpdater lets the tracker write a job outcome onto the scene
// the job was submitted against.
type sceneLibraryUpdater struct {
	lib *library.Library[domain.Scene, *domain.Scene]
}

func (u *sceneLibraryUpdater) MarkVideoReady(ctx context.Context, sceneID, videoURL string) error {
	return u.patch(ctx, sceneID, func(s *domain.Scene) {
		s.VideoURL = videoURL
		s.VideoStatus = string(domain.JobStateSucceeded)
	})
}

func (u *sceneLibraryUpdater) MarkVideoFailed(ctx context.Context, sceneID, reason string) error {
	return u.patch(ctx, sceneID, func(s *domain.Scene) {
		s.VideoStatus = string(domain.JobStateFailed)
	})
}

func (u *sceneLibraryUpdater) patch(ctx context.Context, sceneID string, fn func(*domain.Scene)) error {
	if _, err := u.lib.Load(ctx); err != nil {
		return err
	}
	scene, ok := u.lib.Get(sceneID)
	if !ok {
		return domain.ErrNotFound
	}
	fn(&scene)
	_, err := u.lib.Save(ctx, scene)
	return err
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error_code": errCode, "error": message})
}

// fail maps a domain error onto the HTTP surface. Entitlement rejections
// carry an explicit upgrade_required flag so clients route to the upgrade
// flow without inspecting message text.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case domain.IsUpgradeRequired(err):
		a.json(w, http.StatusForbidden, map[string]any{
			"error_code":       "upgrade_required",
			"error":            err.Error(),
			"upgrade_required": true,
		})
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", err.Error())
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	default:
		a.error(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}
