// Package httpapi wires handlers and middleware into the service router.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"aura/internal/http/handlers"
	"aura/internal/infra"
	"aura/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(splitOrigins(cfg.CORSAllowedOrigins)),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/health", app.Health)
	r.Get("/healthz/live", app.Live)
	r.Get("/healthz/ready", app.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/video", func(r chi.Router) {
			r.Post("/upload", app.VideoUpload)
			r.Post("/transform/{job_id}", app.VideoTransform)
			r.Get("/status/{job_id}", app.VideoStatus)
			r.Get("/download/{job_id}", app.VideoDownload)
			r.Get("/jobs", app.VideoJobs)
			r.Post("/cancel/{job_id}", app.VideoCancel)
		})

		r.Post("/image/generate", app.ImageGenerate)

		r.Route("/director", func(r chi.Router) {
			r.Get("/styles", app.DirectorStyles)
			r.Get("/atmospheres", app.DirectorAtmospheres)
			r.Get("/suggestions", app.DirectorSuggestions)
			r.Post("/generate-prompt", app.DirectorGeneratePrompt)
		})
	})

	return r
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
