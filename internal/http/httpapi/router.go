package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mediaserver/internal/http/handlers"
	"mediaserver/internal/middleware"
)

// NewRouter wires the HTTP surface. The webhook and the artifact proxy stay
// outside the auth group: the vendor callback carries no credentials, and
// proxy URLs are handed to browsers directly.
func NewRouter(app *handlers.App, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/v1/healthz", app.Health)

	r.Post("/v1/webhooks/video", app.VideoWebhook)
	r.Get("/api/proxy/*", app.ProxyFile)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(app.Config.JWTSecret, app.Config.APIKey))
		r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))

		r.Post("/v1/generate/images", app.ImagesGenerate)
		r.Post("/v1/generate/videos", app.VideosGenerate)

		r.Route("/v1/history", func(r chi.Router) {
			r.Get("/", app.HistoryList)
			r.Get("/{id}/status", app.HistoryStatus)
			r.Get("/{id}/archive", app.HistoryArchive)
		})
	})

	return r
}
