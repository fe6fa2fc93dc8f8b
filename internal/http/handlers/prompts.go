package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/middleware"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/prompt"
)

type scenePromptRequest struct {
	Subject       string `json:"subject"`
	Action        string `json:"action"`
	Setting       string `json:"setting"`
	AspectRatio   string `json:"aspect_ratio"`
	CharacterID   string `json:"character_id"`
	EnvironmentID string `json:"environment_id"`
	StyleID       string `json:"style_id"`
	BrandID       string `json:"brand_id"`
}

type scenePromptResponse struct {
	Prompt        string `json:"prompt"`
	AdvisoryCount int    `json:"advisory_count,omitempty"`
}

// ScenePrompt assembles a SceneBlock prompt from the request plus any
// referenced library records. For anonymous callers it also bumps the
// device-local advisory counter; that counter is cosmetic and independent
// of the server-enforced quota.
func (a *App) ScenePrompt(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess.Key() == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "X-Device-ID header or bearer token required")
		return
	}

	var req scenePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	st := a.stateFor(sess)
	in := prompt.SceneInput{
		Subject:     req.Subject,
		Action:      req.Action,
		Setting:     req.Setting,
		AspectRatio: req.AspectRatio,
	}

	if req.CharacterID != "" {
		if _, err := st.libs.Characters.Load(r.Context()); err != nil {
			a.fail(w, err)
			return
		}
		if rec, ok := st.libs.Characters.Get(req.CharacterID); ok {
			in.Character = &rec
		}
	}
	if req.EnvironmentID != "" {
		if _, err := st.libs.Environments.Load(r.Context()); err != nil {
			a.fail(w, err)
			return
		}
		if rec, ok := st.libs.Environments.Get(req.EnvironmentID); ok {
			in.Environment = &rec
		}
	}
	if req.StyleID != "" {
		if _, err := st.libs.Styles.Load(r.Context()); err != nil {
			a.fail(w, err)
			return
		}
		if rec, ok := st.libs.Styles.Get(req.StyleID); ok {
			in.Style = &rec
		}
	}
	if req.BrandID != "" {
		if _, err := st.libs.Brands.Load(r.Context()); err != nil {
			a.fail(w, err)
			return
		}
		if rec, ok := st.libs.Brands.Get(req.BrandID); ok {
			in.Brand = &rec
		}
	}

	text, err := prompt.BuildSceneBlock(in)
	if err != nil {
		a.fail(w, err)
		return
	}

	resp := scenePromptResponse{Prompt: text}
	if !sess.Authenticated() && sess.DeviceID != "" {
		count, err := a.Advisory.Increment(r.Context(), sess.DeviceID)
		if err != nil {
			a.Logger.Warn().Err(err).Str("device_id", sess.DeviceID).Msg("handlers: advisory counter bump failed")
		} else {
			resp.AdvisoryCount = count
		}
	}
	a.json(w, http.StatusOK, resp)
}

// UsageAdvisory reports the cosmetic counter for the calling device.
func (a *App) UsageAdvisory(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess.DeviceID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "X-Device-ID header required")
		return
	}
	count, err := a.Advisory.Count(r.Context(), sess.DeviceID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"count": count})
}
