package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/middleware"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/videogen"
)

type videoGenerateRequest struct {
	Prompt         string `json:"prompt"`
	ImageReference string `json:"image_reference"`
	Duration       int    `json:"duration"`
	AspectRatio    string `json:"aspect_ratio"`
	SceneID        string `json:"scene_id"`
}

type videoGenerateResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	EstimatedTime  string `json:"estimated_time,omitempty"`
	RemainingQuota int    `json:"remaining_quota"`
}

// VideosGenerate submits a video job to the gateway and starts the poll loop.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "sign in to generate video")
		return
	}
	if !sess.Entitled() {
		a.fail(w, &domain.UpgradeRequiredError{})
		return
	}

	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	remaining, err := a.Quota.Remaining(r.Context(), sess.UserID)
	if err != nil {
		a.fail(w, err)
		return
	}

	st := a.stateFor(sess)
	resp, err := st.tracker.Submit(r.Context(), sess, videogen.SubmitParams{
		Prompt:         req.Prompt,
		ImageReference: req.ImageReference,
		Duration:       req.Duration,
		AspectRatio:    req.AspectRatio,
		SceneID:        req.SceneID,
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	// Charge only after the gateway accepted the job.
	if err := a.Quota.Record(r.Context(), sess.UserID); err != nil {
		a.Logger.Error().Err(err).Str("user_id", sess.UserID).Msg("handlers: usage record failed")
	} else if remaining > 0 {
		remaining--
	}

	if a.Jobs != nil {
		job := &domain.GenerationJob{
			ID:          resp.JobID,
			UserID:      sess.UserID,
			Prompt:      req.Prompt,
			AspectRatio: req.AspectRatio,
			Duration:    req.Duration,
			SceneID:     req.SceneID,
			Status:      domain.JobStateRunning,
		}
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		if err := a.Jobs.Create(r.Context(), job); err != nil {
			a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("handlers: job archive insert failed")
		}
	}

	a.json(w, http.StatusAccepted, videoGenerateResponse{
		JobID:          resp.JobID,
		Status:         string(domain.JobStateRunning),
		EstimatedTime:  resp.EstimatedTime,
		RemainingQuota: remaining,
	})
}

// VideoCurrent reports the tracked job's snapshot for this session.
func (a *App) VideoCurrent(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	st := a.stateFor(sess)
	a.json(w, http.StatusOK, st.tracker.Snapshot())
}

// VideoStatus performs one direct status check against the gateway.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	st := a.stateFor(sess)
	status, err := st.tracker.CheckStatus(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, status)
}

// VideoReset cancels any active poll loop and clears the tracked job.
func (a *App) VideoReset(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	st := a.stateFor(sess)
	st.tracker.Reset()
	a.json(w, http.StatusOK, st.tracker.Snapshot())
}

// VideoHistory lists the user's archived jobs, newest-first.
func (a *App) VideoHistory(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Jobs.ListByUser(r.Context(), sess.UserID, 50)
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, map[string]any{
			"id":           job.ID,
			"prompt":       job.Prompt,
			"aspect_ratio": job.AspectRatio,
			"duration":     job.Duration,
			"scene_id":     job.SceneID,
			"status":       job.Status,
			"result_url":   job.ResultURL,
			"error":        job.ErrorMessage,
			"created_at":   job.CreatedAt,
			"updated_at":   job.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
