package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library/local"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/middleware"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/usage"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/videogen"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// usageDB answers only the usage queries; everything else fails loudly.
type usageDB struct {
	mu   sync.Mutex
	used int
}

func (s *usageDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if !strings.Contains(query, "insert into usage_events") {
		return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %s", query)
	}
	s.mu.Lock()
	s.used++
	s.mu.Unlock()
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *usageDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if !strings.Contains(query, "from usage_events") {
		return stubRow{scan: func(dest ...any) error {
			return fmt.Errorf("unsupported query: %s", query)
		}}
	}
	s.mu.Lock()
	used := s.used
	s.mu.Unlock()
	return stubRow{scan: func(dest ...any) error {
		*(dest[0].(*int)) = used
		return nil
	}}
}

func (s *usageDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unsupported query: %s", query)
}

type stubJobs struct {
	mu      sync.Mutex
	created []domain.GenerationJob
	updates []string
}

func (s *stubJobs) Create(ctx context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *job)
	return nil
}

func (s *stubJobs) UpdateStatus(ctx context.Context, jobID string, status domain.JobState, resultURL, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, jobID+":"+string(status))
	return nil
}

func (s *stubJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GenerationJob
	for _, job := range s.created {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *stubJobs) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type stubGateway struct {
	submitErr error
	status    videogen.StatusResponse
}

func (g *stubGateway) SubmitJob(ctx context.Context, req videogen.SubmitRequest) (*videogen.SubmitResponse, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return &videogen.SubmitResponse{JobID: "job-1", EstimatedTime: "2m"}, nil
}

func (g *stubGateway) CheckStatus(ctx context.Context, jobID string) (*videogen.StatusResponse, error) {
	status := g.status
	if status.Status == "" {
		status.Status = videogen.RemoteRunning
	}
	return &status, nil
}

func newTestApp(t *testing.T) (*App, *stubJobs) {
	t.Helper()
	kv, err := local.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	db := &usageDB{}
	jobs := &stubJobs{}
	app := NewApp(db, kv, jobs, usage.NewAdvisory(kv), usage.NewQuota(db, 10),
		&stubGateway{}, zerolog.Nop(), 50*time.Millisecond, 3)
	return app, jobs
}

func doRequest(app *App, handler http.HandlerFunc, method, body string, sess domain.Session, params map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/", reader)
	ctx := middleware.ContextWithSession(req.Context(), sess)

	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))
	return rec
}

func anonSession() domain.Session {
	return domain.Session{DeviceID: "dev-1"}
}

func premiumSession() domain.Session {
	return domain.Session{UserID: "user-1", DeviceID: "dev-1", Plan: domain.UserPlanPremium}
}

func TestVideosGenerateRequiresAuth(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog"}`, anonSession(), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestVideosGenerateFreePlanGetsUpgradeFlag(t *testing.T) {
	app, _ := newTestApp(t)
	sess := domain.Session{UserID: "user-1", Plan: domain.UserPlanFree}
	rec := doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog"}`, sess, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body struct {
		ErrorCode       string `json:"error_code"`
		UpgradeRequired bool   `json:"upgrade_required"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ErrorCode != "upgrade_required" || !body.UpgradeRequired {
		t.Fatalf("body = %+v", body)
	}
}

func TestVideosGenerateAcceptsAndArchives(t *testing.T) {
	app, jobs := newTestApp(t)
	rec := doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog","aspect_ratio":"9:16"}`, premiumSession(), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body videoGenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.JobID != "job-1" || body.Status != "running" {
		t.Fatalf("body = %+v", body)
	}
	if body.RemainingQuota != 9 {
		t.Fatalf("remaining = %d, want 9", body.RemainingQuota)
	}

	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	if len(jobs.created) != 1 || jobs.created[0].ID != "job-1" {
		t.Fatalf("archive = %+v", jobs.created)
	}
}

func TestVideosGenerateRejectsEmptyPrompt(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"  "}`, premiumSession(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVideosGenerateFailedSubmitKeepsQuota(t *testing.T) {
	app, _ := newTestApp(t)
	gw := app.Gateway.(*stubGateway)
	gw.submitErr = errors.New("gateway down")

	rec := doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog"}`, premiumSession(), nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	db := app.SQL.(*usageDB)
	db.mu.Lock()
	used := db.used
	db.mu.Unlock()
	if used != 0 {
		t.Fatalf("usage recorded despite failed submission: used = %d", used)
	}

	// The allowance is intact, so a retry succeeds with the full budget.
	gw.submitErr = nil
	rec = doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog"}`, premiumSession(), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("retry status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body videoGenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.RemainingQuota != 9 {
		t.Fatalf("remaining = %d, want 9", body.RemainingQuota)
	}
}

func TestVideoCurrentStartsIdle(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.VideoCurrent, http.MethodGet, "", premiumSession(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap videogen.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != domain.JobStateIdle {
		t.Fatalf("state = %q, want idle", snap.State)
	}
}

func TestVideoResetReturnsIdleSnapshot(t *testing.T) {
	app, _ := newTestApp(t)
	sess := premiumSession()
	doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog"}`, sess, nil)

	rec := doRequest(app, app.VideoReset, http.MethodPost, "", sess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap videogen.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != domain.JobStateIdle {
		t.Fatalf("state = %q, want idle", snap.State)
	}
}

func TestVideoStatusRequiresJobID(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.VideoStatus, http.MethodGet, "", premiumSession(), map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVideoStatusPassesThrough(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.VideoStatus, http.MethodGet, "", premiumSession(), map[string]string{"job_id": "job-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status videogen.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != videogen.RemoteRunning {
		t.Fatalf("status = %+v", status)
	}
}

func TestLibraryCRUDAnonymous(t *testing.T) {
	app, _ := newTestApp(t)
	sess := anonSession()
	params := map[string]string{"kind": "characters"}

	rec := doRequest(app, app.LibraryList, http.MethodGet, "", sess, params)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("empty list body = %s", rec.Body.String())
	}

	rec = doRequest(app, app.LibrarySave, http.MethodPost, `{"name":"Tara","look":"tall"}`, sess, params)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var saved domain.Character
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.ID == "" || saved.Name != "Tara" {
		t.Fatalf("saved = %+v", saved)
	}

	// Same name with different case updates in place.
	rec = doRequest(app, app.LibrarySave, http.MethodPost, `{"name":"tara","look":"short"}`, sess, params)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	var updated domain.Character
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.ID != saved.ID {
		t.Fatalf("update changed id: %q vs %q", updated.ID, saved.ID)
	}

	rec = doRequest(app, app.LibraryList, http.MethodGet, "", sess, params)
	var list struct {
		Items []domain.Character `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Look != "short" {
		t.Fatalf("list = %+v", list.Items)
	}

	rec = doRequest(app, app.LibraryRemove, http.MethodDelete, "", sess, map[string]string{"kind": "characters", "id": saved.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}
}

func TestLibrarySaveWithoutNameFails(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.LibrarySave, http.MethodPost, `{"look":"tall"}`, anonSession(), map[string]string{"kind": "characters"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLibraryUnknownKind(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.LibraryList, http.MethodGet, "", anonSession(), map[string]string{"kind": "gadgets"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLibraryRequiresIdentity(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.LibraryList, http.MethodGet, "", domain.Session{}, map[string]string{"kind": "characters"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLibrariesAreIsolatedPerDevice(t *testing.T) {
	app, _ := newTestApp(t)
	params := map[string]string{"kind": "brands"}

	rec := doRequest(app, app.LibrarySave, http.MethodPost, `{"name":"TrailCo"}`, domain.Session{DeviceID: "dev-1"}, params)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}

	rec = doRequest(app, app.LibraryList, http.MethodGet, "", domain.Session{DeviceID: "dev-2"}, params)
	var list struct {
		Items []domain.Brand `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("records leaked across devices: %+v", list.Items)
	}
}

func TestScenePromptAssemblesAndCountsAdvisory(t *testing.T) {
	app, _ := newTestApp(t)
	sess := anonSession()

	rec := doRequest(app, app.LibrarySave, http.MethodPost, `{"name":"Tara","look":"tall, red coat"}`, sess, map[string]string{"kind": "characters"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}
	var saved domain.Character
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}

	body := fmt.Sprintf(`{"subject":"a fox","action":"runs","character_id":%q}`, saved.ID)
	rec = doRequest(app, app.ScenePrompt, http.MethodPost, body, sess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("prompt status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp scenePromptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Prompt, "Character — Tara:") {
		t.Fatalf("prompt = %q", resp.Prompt)
	}
	if resp.AdvisoryCount != 1 {
		t.Fatalf("advisory count = %d, want 1", resp.AdvisoryCount)
	}

	rec = doRequest(app, app.ScenePrompt, http.MethodPost, `{"subject":"a fox","action":"sleeps"}`, sess, nil)
	var second scenePromptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if second.AdvisoryCount != 2 {
		t.Fatalf("advisory count = %d, want 2", second.AdvisoryCount)
	}
}

func TestScenePromptAuthenticatedSkipsAdvisory(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.ScenePrompt, http.MethodPost, `{"subject":"a fox","action":"runs"}`, premiumSession(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp scenePromptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AdvisoryCount != 0 {
		t.Fatalf("advisory count = %d, want 0", resp.AdvisoryCount)
	}
}

func TestEvictIdleSessionsDropsStaleState(t *testing.T) {
	app, _ := newTestApp(t)
	doRequest(app, app.LibraryList, http.MethodGet, "", anonSession(), map[string]string{"kind": "characters"})

	app.mu.Lock()
	app.sessions["dev-1"].lastSeen = time.Now().Add(-48 * time.Hour)
	app.mu.Unlock()

	if got := app.EvictIdleSessions(24 * time.Hour); got != 1 {
		t.Fatalf("evicted = %d, want 1", got)
	}
	app.mu.Lock()
	_, ok := app.sessions["dev-1"]
	app.mu.Unlock()
	if ok {
		t.Fatalf("stale session survived eviction")
	}

	// Records persist in SQLite; the next request rebuilds the state.
	rec := doRequest(app, app.LibraryList, http.MethodGet, "", anonSession(), map[string]string{"kind": "characters"})
	if rec.Code != http.StatusOK {
		t.Fatalf("list after eviction = %d", rec.Code)
	}
}

func TestEvictIdleSessionsKeepsRecentAndActive(t *testing.T) {
	app, _ := newTestApp(t)
	sess := premiumSession()
	rec := doRequest(app, app.VideosGenerate, http.MethodPost, `{"prompt":"a dog"}`, sess, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d", rec.Code)
	}
	doRequest(app, app.LibraryList, http.MethodGet, "", domain.Session{DeviceID: "dev-9"}, map[string]string{"kind": "characters"})

	// The job is still running, so even a long-idle session stays.
	app.mu.Lock()
	app.sessions["user-1"].lastSeen = time.Now().Add(-48 * time.Hour)
	app.mu.Unlock()

	if got := app.EvictIdleSessions(24 * time.Hour); got != 0 {
		t.Fatalf("evicted = %d, want 0", got)
	}
	app.mu.Lock()
	_, hasUser := app.sessions["user-1"]
	_, hasDevice := app.sessions["dev-9"]
	app.mu.Unlock()
	if !hasUser {
		t.Fatalf("session with live job was evicted")
	}
	if !hasDevice {
		t.Fatalf("recently seen session was evicted")
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doRequest(app, app.Health, http.MethodGet, "", domain.Session{}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
