package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/http/handlers"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/middleware"
)

// NewRouter wires every HTTP surface onto a chi router. The session
// middleware runs before everything that reads library or video state
// so handlers always see a resolved domain.Session.
func NewRouter(app *handlers.App, cfg *infra.Config, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.Session(cfg.JWTSecret),
		middleware.I18N(cfg.DefaultLocale, lookup),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/videos", func(r chi.Router) {
		r.Post("/", app.VideosGenerate)
		r.Get("/current", app.VideoCurrent)
		r.Get("/history", app.VideoHistory)
		r.Post("/reset", app.VideoReset)
		r.Get("/{job_id}", app.VideoStatus)
	})

	r.Route("/v1/library/{kind}", func(r chi.Router) {
		r.Get("/", app.LibraryList)
		r.Post("/", app.LibrarySave)
		r.Delete("/{id}", app.LibraryRemove)
	})

	r.Post("/v1/prompts/scene", app.ScenePrompt)
	r.Get("/v1/usage/advisory", app.UsageAdvisory)

	return r
}
