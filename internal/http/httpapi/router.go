package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"learnapp/internal/http/handlers"
	"learnapp/internal/middleware"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	JWTSecret       string
	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
	// StaticDir, when set, is served under /static for the filesystem
	// storage backend.
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimit > 0 && opts.RateLimitWindow > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, opts.RateLimitWindow))
	}

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Route("/v1/documents", func(r chi.Router) {
			r.Get("/", app.DocumentsList)
			r.Post("/", app.DocumentsUpload)
			r.Get("/{id}", app.DocumentGet)
			r.Delete("/{id}", app.DocumentDelete)
		})

		r.Route("/v1/ai", func(r chi.Router) {
			r.Post("/generate-video", app.VideosGenerate)
			r.Get("/video-jobs/{id}", app.VideoJobStatus)
			r.Get("/video-overview-url/{documentId}", app.VideoOverviewURL)
		})
	})

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
